package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/domain/entity"
	clog "ikedadada/go-torcircuit/internal/log"
	"ikedadada/go-torcircuit/internal/relaysim"
)

var defaultFlags = []string{"Fast", "Guard", "Running", "Stable", "Valid"}

// catalogOf publishes every relay of the network.
func catalogOf(n *relaysim.Network) entity.Directory {
	var d entity.Directory
	for _, desc := range n.Descriptors() {
		d.Relays = append(d.Relays, entity.RelayInfoFrom(desc))
	}
	return d
}

func newMux(n *relaysim.Network, log *logging.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/relays", func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("request %s %s", r.Method, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(catalogOf(n)); err != nil {
			log.Warningf("encode catalog: %v", err)
		}
	})
	return mux
}

// startNetwork brings up count relays listening on loopback TLS.
func startNetwork(count int, log *logging.Logger) (*relaysim.Network, error) {
	n := relaysim.NewNetwork(log)
	for i := 0; i < count; i++ {
		if _, err := n.AddRelay(relaysim.RelayConfig{Nickname: fmt.Sprintf("sim%02d", i), Flags: defaultFlags}); err != nil {
			n.Close()
			return nil, err
		}
	}
	if err := n.ListenTLS(); err != nil {
		n.Close()
		return nil, err
	}
	return n, nil
}

// rotateOnHUP reopens the log file on every SIGHUP until ctx ends.
func rotateOnHUP(ctx context.Context, backend *clog.Backend, log *logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := backend.Rotate(); err != nil {
				log.Errorf("rotate log: %v", err)
			}
		}
	}
}

func newRootCmd() *cobra.Command {
	var (
		listen     string
		relays     int
		catalogOut string
		logFile    string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:          "directory",
		Short:        "Run a loopback relay network and publish its catalog",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := clog.New(logFile, logLevel, false)
			if err != nil {
				return err
			}
			defer backend.Close()
			log := backend.GetLogger("directory")
			go rotateOnHUP(cmd.Context(), backend, log)

			n, err := startNetwork(relays, backend.GetLogger("relaysim"))
			if err != nil {
				return err
			}
			defer n.Close()
			for _, d := range n.Descriptors() {
				log.Noticef("relay %s", d)
			}
			if catalogOut != "" {
				b, err := json.MarshalIndent(catalogOf(n), "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(catalogOut, b, 0600); err != nil {
					return err
				}
				log.Noticef("catalog written to %s", catalogOut)
			}

			srv := &http.Server{Addr: listen, Handler: newMux(n, log), ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				srv.Close()
			}()
			log.Noticef("directory server listening on %s", listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8081", "listen address")
	cmd.Flags().IntVar(&relays, "relays", 3, "number of relays to run")
	cmd.Flags().StringVar(&catalogOut, "catalog-out", "", "also write the catalog to this file")
	cmd.Flags().StringVar(&logFile, "log-file", "", "log file (stdout when empty)")
	cmd.Flags().StringVar(&logLevel, "log-level", "NOTICE", "log level")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

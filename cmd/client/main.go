package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ikedadada/go-torcircuit/internal/config"
	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/service"
	"ikedadada/go-torcircuit/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type buildOptions struct {
	hops   int
	via    []string
	count  int
	hold   time.Duration
	asJSON bool
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "ptor-client",
		Short:         "Build ntor circuits through onion relays",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "client.toml", "path to the TOML configuration")

	var bo buildOptions
	build := &cobra.Command{
		Use:   "build",
		Short: "Create a circuit and extend it hop by hop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, cfgFile, func(a *app) error { return runBuild(cmd.Context(), cmd.OutOrStdout(), a, bo) })
		},
	}
	build.Flags().IntVar(&bo.hops, "hops", 0, "circuit length (default from config)")
	build.Flags().StringSliceVar(&bo.via, "via", nil, "relay fingerprints to build through, first hop first")
	build.Flags().IntVar(&bo.count, "count", 1, "number of circuits to build in parallel")
	build.Flags().DurationVar(&bo.hold, "hold", 0, "keep circuits open this long before tearing them down")
	build.Flags().BoolVar(&bo.asJSON, "json", false, "print results as JSON")

	var flags []string
	var relaysJSON bool
	relays := &cobra.Command{
		Use:   "relays",
		Short: "List relays known from the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, cfgFile, func(a *app) error {
				out, err := usecase.NewListRelaysUseCase(a.relays).Handle(usecase.ListRelaysInput{Flags: flags})
				if err != nil {
					return err
				}
				if relaysJSON {
					return writeJSON(cmd.OutOrStdout(), out)
				}
				for _, r := range out.Relays {
					fmt.Fprintf(cmd.OutOrStdout(), "%-19s %s %-21s %s\n", r.Nickname, r.Fingerprint, r.Address, strings.Join(r.Flags, ","))
				}
				return nil
			})
		},
	}
	relays.Flags().StringSliceVar(&flags, "flag", nil, "only relays carrying all of these flags")
	relays.Flags().BoolVar(&relaysJSON, "json", false, "print results as JSON")

	root.AddCommand(build, relays)
	return root
}

func withApp(cmd *cobra.Command, cfgFile string, fn func(*app) error) error {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "config: %v\n", err)
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "startup: %v\n", err)
		return err
	}
	defer a.Close()
	if err := fn(a); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		return err
	}
	return nil
}

// buildReport is one line of `build` output.
type buildReport struct {
	Circuit *usecase.BuildCircuitOutput `json:"circuit,omitempty"`
	Failure *usecase.FailureDTO         `json:"failure,omitempty"`
}

func runBuild(ctx context.Context, w io.Writer, a *app, o buildOptions) error {
	if o.hops == 0 {
		o.hops = a.cfg.Link.Hops
	}
	var reports []buildReport
	switch {
	case o.count <= 1:
		uc := usecase.NewBuildCircuitUseCase(a.relays, a.topology, a.manager)
		out, err := uc.Handle(ctx, usecase.BuildCircuitInput{Fingerprints: o.via, Hops: o.hops})
		reports = append(reports, report(&out, err))
	case len(o.via) > 0:
		return fmt.Errorf("--via builds a single circuit")
	default:
		paths, err := selectPaths(a, o.hops, o.count)
		if err != nil {
			return err
		}
		for _, r := range a.manager.BuildMany(ctx, paths) {
			if r.Err != nil {
				reports = append(reports, report(nil, r.Err))
				continue
			}
			out := usecase.CircuitToDTO(r.Circuit)
			reports = append(reports, report(&out, nil))
		}
	}

	failed := 0
	for _, r := range reports {
		if r.Failure != nil {
			failed++
		}
	}
	if o.asJSON {
		if err := writeJSON(w, reports); err != nil {
			return err
		}
	} else {
		printReports(w, reports)
	}

	if o.hold > 0 && failed < len(reports) {
		a.log.Noticef("holding %d circuits for %s", len(reports)-failed, o.hold)
		select {
		case <-time.After(o.hold):
		case <-ctx.Done():
		}
	}
	destroy := usecase.NewDestroyCircuitUseCase(a.manager)
	for _, r := range reports {
		if r.Circuit == nil {
			continue
		}
		if _, err := destroy.Handle(usecase.DestroyCircuitInput{Handle: r.Circuit.Handle}); err != nil {
			a.log.Warningf("destroy %s: %v", r.Circuit.Handle, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d circuits failed", failed, len(reports))
	}
	return nil
}

func report(out *usecase.BuildCircuitOutput, err error) buildReport {
	if err != nil {
		f := usecase.DescribeFailure(err)
		return buildReport{Failure: &f}
	}
	return buildReport{Circuit: out}
}

// selectPaths picks n paths. Relays may repeat across paths but not within
// one.
func selectPaths(a *app, hops, n int) ([][]*entity.RelayDescriptor, error) {
	all, err := a.relays.All()
	if err != nil {
		return nil, err
	}
	crit := service.DefaultSelectionCriteria()
	crit.Hops = hops
	paths := make([][]*entity.RelayDescriptor, 0, n)
	for i := 0; i < n; i++ {
		p, err := a.topology.SelectPath(all, crit)
		if err != nil {
			return nil, fmt.Errorf("select path %d: %w", i+1, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func printReports(w io.Writer, reports []buildReport) {
	for _, r := range reports {
		if f := r.Failure; f != nil {
			fmt.Fprintf(w, "FAILED  kind=%s", f.Kind)
			if f.Relay != "" {
				fmt.Fprintf(w, " relay=%s", f.Relay)
			}
			if f.Reason != "" {
				fmt.Fprintf(w, " reason=%s", f.Reason)
			}
			fmt.Fprintf(w, "\n        %s\n", f.Message)
			continue
		}
		c := r.Circuit
		names := make([]string, len(c.Hops))
		for i, h := range c.Hops {
			names[i] = h.Nickname
		}
		fmt.Fprintf(w, "BUILT   %s circ=%s %s [%s]\n", c.Handle, c.CircuitID, c.State, strings.Join(names, " -> "))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

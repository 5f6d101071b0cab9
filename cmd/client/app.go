package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/config"
	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/repository"
	"ikedadada/go-torcircuit/internal/domain/service"
	infraHTTP "ikedadada/go-torcircuit/internal/infrastructure/http"
	infraRepo "ikedadada/go-torcircuit/internal/infrastructure/repository"
	infraSvc "ikedadada/go-torcircuit/internal/infrastructure/service"
	"ikedadada/go-torcircuit/internal/infrastructure/util"
	"ikedadada/go-torcircuit/internal/instrument"
	clog "ikedadada/go-torcircuit/internal/log"
	"ikedadada/go-torcircuit/internal/usecase"
)

const catalogFetchTimeout = 30 * time.Second

// app holds everything a subcommand needs.
type app struct {
	cfg     *config.Config
	backend *clog.Backend
	log     *logging.Logger

	relays   repository.RelayRepository
	topology service.CircuitTopologyService
	manager  usecase.CircuitManager

	cache   *infraRepo.BoltRelayRepository
	metrics *http.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	backend, err := clog.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		backend:  backend,
		log:      backend.GetLogger("client"),
		topology: service.NewCircuitTopologyService(nil),
	}
	if cfg.Metrics.Address != "" {
		a.metrics = instrument.Init(cfg.Metrics.Address)
		a.log.Noticef("metrics on http://%s/metrics", cfg.Metrics.Address)
	}
	if err := a.loadRelays(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// --- link / circuit の配線
	dialer, err := cfg.UpstreamProxyConfig().ContextDialer("links")
	if err != nil {
		a.Close()
		return nil, err
	}
	linkCfg := infraSvc.TLSLinkDialerConfig{
		ConnectTimeout:   cfg.Link.ConnectTimeoutDuration(),
		HandshakeTimeout: cfg.Link.HandshakeTimeoutDuration(),
		Versions:         cfg.Link.Versions(),
		Dialer:           dialer,
		Log:              backend.GetLogger("link"),
	}
	a.manager = usecase.NewCircuitManager(usecase.CircuitManagerConfig{
		Dialer:       infraSvc.NewTLSLinkDialer(linkCfg),
		Handshake:    service.NewHandshakeService(infraSvc.NewCryptoService()),
		Repo:         infraRepo.NewCircuitRepo(),
		ReplyTimeout: cfg.Link.ReplyTimeoutDuration(),
		Log:          backend.GetLogger("manager"),
	})
	return a, nil
}

// loadRelays fills the relay repository from the catalog file or URL. The
// bolt cache, when configured, is refreshed with what was loaded and used
// as the source of last resort.
func (a *app) loadRelays(ctx context.Context) error {
	cat := a.cfg.Catalog
	catLog := a.backend.GetLogger("catalog")

	var (
		descs []*entity.RelayDescriptor
		err   error
	)
	switch {
	case cat.File != "":
		descs, err = infraRepo.LoadRelayCatalogFile(cat.File, catLog)
	case cat.URL != "":
		fctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
		defer cancel()
		descs, err = infraRepo.FetchRelayCatalog(fctx, infraHTTP.NewHTTPClient(catalogFetchTimeout), cat.URL, catLog)
	default:
		err = errors.New("no catalog source")
	}
	if err == nil {
		err = util.ValidateSliceNotEmpty(descs, "catalog relays")
	}

	if cat.Cache == "" {
		if err != nil {
			return fmt.Errorf("load relay catalog: %w", err)
		}
		a.relays = infraRepo.NewRelayRepository(descs...)
		return nil
	}

	cache, cerr := infraRepo.NewBoltRelayRepository(cat.Cache, catLog)
	if cerr != nil {
		return errors.Join(err, cerr)
	}
	a.cache = cache
	a.relays = cache
	if err != nil {
		a.log.Warningf("catalog unavailable, using cache %s: %v", cat.Cache, err)
		return nil
	}
	for _, d := range descs {
		if err := cache.Save(d); err != nil {
			return fmt.Errorf("cache relay %s: %w", d.Nickname(), err)
		}
	}
	return nil
}

func (a *app) Close() {
	if a.manager != nil {
		if err := a.manager.Shutdown(); err != nil {
			a.log.Warningf("shutdown: %v", err)
		}
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.metrics != nil {
		a.metrics.Close()
	}
	a.backend.Close()
}

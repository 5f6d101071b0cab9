package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/domain"
	"ikedadada/go-torcircuit/internal/domain/aggregate"
	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/repository"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
	"ikedadada/go-torcircuit/internal/instrument"
)

// ErrInvalidPath rejects paths that are empty or visit a relay twice.
var ErrInvalidPath = errors.New("invalid circuit path")

const DefaultMaxParallelBuilds = 8

// CircuitManagerConfig wires a CircuitManager.
type CircuitManagerConfig struct {
	Dialer       service.LinkDialer
	Handshake    service.HandshakeService
	Repo         repository.CircuitRepository
	ReplyTimeout time.Duration
	// MaxParallel bounds BuildMany.
	MaxParallel int
	Log         *logging.Logger
}

// BuildResult is the outcome of one path in BuildMany.
type BuildResult struct {
	Circuit *aggregate.Circuit
	Err     error
}

// CircuitManager builds and tracks circuits. Every circuit has its own
// link. Failed builds are torn down and never retried.
type CircuitManager interface {
	Build(ctx context.Context, path []*entity.RelayDescriptor) (*aggregate.Circuit, error)
	BuildMany(ctx context.Context, paths [][]*entity.RelayDescriptor) []BuildResult
	Get(h vo.CircuitHandle) (*aggregate.Circuit, error)
	List() ([]*aggregate.Circuit, error)
	Destroy(h vo.CircuitHandle, reason vo.DestroyReason) error
	// Shutdown destroys every tracked circuit.
	Shutdown() error
}

type circuitManagerImpl struct {
	cfg CircuitManagerConfig
	mu  sync.Mutex // serialises repository bookkeeping
}

// コンストラクタ
func NewCircuitManager(cfg CircuitManagerConfig) CircuitManager {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallelBuilds
	}
	if cfg.Log == nil {
		cfg.Log = logging.MustGetLogger("manager")
	}
	return &circuitManagerImpl{cfg: cfg}
}

func (m *circuitManagerImpl) Build(ctx context.Context, path []*entity.RelayDescriptor) (*aggregate.Circuit, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	c := aggregate.NewCircuit(aggregate.CircuitConfig{
		Dialer:       m.cfg.Dialer,
		Handshake:    m.cfg.Handshake,
		ReplyTimeout: m.cfg.ReplyTimeout,
		Log:          m.cfg.Log,
	})

	start := time.Now()
	if err := c.Create(ctx, path[0]); err != nil {
		if c.Link() == nil {
			instrument.LinkFailed(kindLabel(err))
		} else {
			instrument.LinkEstablished()
		}
		instrument.CircuitFailed("create", kindLabel(err))
		c.Destroy(vo.DestroyFinished)
		return nil, fmt.Errorf("create via %s: %w", path[0].Nickname(), err)
	}
	instrument.LinkEstablished()
	instrument.CircuitCreated(time.Since(start))

	m.mu.Lock()
	err := m.cfg.Repo.Save(c)
	m.mu.Unlock()
	if err != nil {
		m.abandon(c)
		return nil, fmt.Errorf("save circuit: %w", err)
	}

	for i, d := range path[1:] {
		start := time.Now()
		if err := c.Extend(ctx, d); err != nil {
			instrument.CircuitFailed("extend", kindLabel(err))
			m.abandon(c)
			return nil, fmt.Errorf("extend to %s (hop %d): %w", d.Nickname(), i+2, err)
		}
		instrument.CircuitExtended(time.Since(start))
	}
	m.publishActive()
	m.cfg.Log.Noticef("circuit %s built through %d relays", c.Handle(), c.HopCount())
	return c, nil
}

func (m *circuitManagerImpl) BuildMany(ctx context.Context, paths [][]*entity.RelayDescriptor) []BuildResult {
	results := make([]BuildResult, len(paths))
	var g errgroup.Group
	g.SetLimit(m.cfg.MaxParallel)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			c, err := m.Build(ctx, p)
			results[i] = BuildResult{Circuit: c, Err: err}
			// Circuits are independent; a failure must not cancel the rest.
			return nil
		})
	}
	g.Wait()
	return results
}

func (m *circuitManagerImpl) Get(h vo.CircuitHandle) (*aggregate.Circuit, error) {
	return m.cfg.Repo.Find(h)
}

func (m *circuitManagerImpl) List() ([]*aggregate.Circuit, error) {
	return m.cfg.Repo.ListActive()
}

func (m *circuitManagerImpl) Destroy(h vo.CircuitHandle, reason vo.DestroyReason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cfg.Repo.Find(h)
	if err != nil {
		return fmt.Errorf("find circuit %s: %w", h, err)
	}
	if err := c.Destroy(reason); err != nil {
		return err
	}
	instrument.CircuitDestroyed(reason.String())
	if err := m.cfg.Repo.Delete(h); err != nil {
		return fmt.Errorf("delete circuit %s: %w", h, err)
	}
	m.publishActiveLocked()
	return nil
}

func (m *circuitManagerImpl) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, err := m.cfg.Repo.ListActive()
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range cs {
		if err := c.Destroy(vo.DestroyFinished); err != nil {
			errs = append(errs, err)
		}
		instrument.CircuitDestroyed(vo.DestroyFinished.String())
		if err := m.cfg.Repo.Delete(c.Handle()); err != nil && !errors.Is(err, repository.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	m.publishActiveLocked()
	m.cfg.Log.Infof("shutdown: destroyed %d circuits", len(cs))
	return errors.Join(errs...)
}

// abandon tears down a failed build and forgets it.
func (m *circuitManagerImpl) abandon(c *aggregate.Circuit) {
	c.Destroy(vo.DestroyFinished)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Repo.Delete(c.Handle())
	m.publishActiveLocked()
}

func (m *circuitManagerImpl) publishActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishActiveLocked()
}

func (m *circuitManagerImpl) publishActiveLocked() {
	if cs, err := m.cfg.Repo.ListActive(); err == nil {
		instrument.ActiveCircuits(len(cs))
	}
}

func validatePath(path []*entity.RelayDescriptor) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: no relays", ErrInvalidPath)
	}
	seen := make(map[vo.Fingerprint]bool, len(path))
	for _, d := range path {
		if seen[d.Fingerprint()] {
			return fmt.Errorf("%w: %s appears twice", ErrInvalidPath, d.Nickname())
		}
		seen[d.Fingerprint()] = true
	}
	return nil
}

func kindLabel(err error) string {
	if k, ok := domain.KindOf(err); ok {
		return k.String()
	}
	return "local"
}

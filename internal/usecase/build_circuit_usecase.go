package usecase

import (
	"context"
	"fmt"
	"time"

	"ikedadada/go-torcircuit/internal/domain/aggregate"
	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/repository"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// ---------- DTO ----------

// BuildCircuitInput はユーザーが指定できるパラメータ
type BuildCircuitInput struct {
	// Fingerprints pins the path, first hop first. Empty means pick one.
	Fingerprints []string
	Hops         int // 省略時はデフォルト (2)
}

// HopDTO describes one hop of a built circuit.
type HopDTO struct {
	Nickname    string `json:"nickname"`
	Fingerprint string `json:"fingerprint"`
	Address     string `json:"address"`
}

// BuildCircuitOutput は UI / API に返すレスポンス
type BuildCircuitOutput struct {
	Handle    string        `json:"handle"`
	CircuitID string        `json:"circuit_id"`
	State     string        `json:"state"`
	CreatedAt time.Time     `json:"created_at"`
	Hops      []HopDTO      `json:"hops"`
	Elapsed   time.Duration `json:"elapsed"`
}

// ---------- UseCase インターフェース ----------

type BuildCircuitUseCase interface {
	Handle(ctx context.Context, in BuildCircuitInput) (BuildCircuitOutput, error)
}

// ---------- 実装 ----------

type buildCircuitUseCaseImpl struct {
	relays   repository.RelayRepository
	topology service.CircuitTopologyService
	manager  CircuitManager
}

// コンストラクタ
func NewBuildCircuitUseCase(rr repository.RelayRepository, ts service.CircuitTopologyService, m CircuitManager) BuildCircuitUseCase {
	return &buildCircuitUseCaseImpl{relays: rr, topology: ts, manager: m}
}

func (uc *buildCircuitUseCaseImpl) Handle(ctx context.Context, in BuildCircuitInput) (BuildCircuitOutput, error) {
	// --- 1. 経路を決める
	path, err := uc.resolvePath(in)
	if err != nil {
		return BuildCircuitOutput{}, err
	}

	// --- 2. 回路を構築
	start := time.Now()
	c, err := uc.manager.Build(ctx, path)
	if err != nil {
		return BuildCircuitOutput{}, err
	}
	out := CircuitToDTO(c)
	out.Elapsed = time.Since(start)
	return out, nil
}

func (uc *buildCircuitUseCaseImpl) resolvePath(in BuildCircuitInput) ([]*entity.RelayDescriptor, error) {
	if len(in.Fingerprints) > 0 {
		path := make([]*entity.RelayDescriptor, 0, len(in.Fingerprints))
		for _, s := range in.Fingerprints {
			fp, err := vo.FingerprintFromHex(s)
			if err != nil {
				return nil, fmt.Errorf("parse fingerprint %q: %w", s, err)
			}
			d, err := uc.relays.FindByFingerprint(fp)
			if err != nil {
				return nil, fmt.Errorf("relay %s: %w", fp, err)
			}
			path = append(path, d)
		}
		return path, nil
	}

	all, err := uc.relays.All()
	if err != nil {
		return nil, fmt.Errorf("list relays: %w", err)
	}
	crit := service.DefaultSelectionCriteria()
	if in.Hops > 0 {
		crit.Hops = in.Hops
	}
	path, err := uc.topology.SelectPath(all, crit)
	if err != nil {
		return nil, fmt.Errorf("select path: %w", err)
	}
	return path, nil
}

// CircuitToDTO snapshots c for presentation.
func CircuitToDTO(c *aggregate.Circuit) BuildCircuitOutput {
	out := BuildCircuitOutput{
		Handle:    c.Handle().String(),
		CircuitID: c.ID().String(),
		State:     c.State().String(),
		CreatedAt: c.CreatedAt(),
	}
	for _, d := range c.Path() {
		out.Hops = append(out.Hops, HopDTO{
			Nickname:    d.Nickname(),
			Fingerprint: d.Fingerprint().String(),
			Address:     d.Endpoint().String(),
		})
	}
	return out
}

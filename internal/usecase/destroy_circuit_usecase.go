package usecase

import (
	"fmt"

	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// ---------- DTO ----------

// DestroyCircuitInput は破棄対象の回路
type DestroyCircuitInput struct {
	Handle string
	// Reason is sent in the DESTROY cell. Zero means "finished".
	Reason vo.DestroyReason
}

type DestroyCircuitOutput struct {
	Handle    string `json:"handle"`
	CircuitID string `json:"circuit_id"`
	Reason    string `json:"reason"`
}

// ---------- UseCase インターフェース ----------

type DestroyCircuitUseCase interface {
	Handle(in DestroyCircuitInput) (DestroyCircuitOutput, error)
}

// ---------- 実装 ----------

type destroyCircuitUseCaseImpl struct {
	manager CircuitManager
}

// コンストラクタ
func NewDestroyCircuitUseCase(m CircuitManager) DestroyCircuitUseCase {
	return &destroyCircuitUseCaseImpl{manager: m}
}

func (uc *destroyCircuitUseCaseImpl) Handle(in DestroyCircuitInput) (DestroyCircuitOutput, error) {
	h, err := vo.CircuitHandleFrom(in.Handle)
	if err != nil {
		return DestroyCircuitOutput{}, fmt.Errorf("parse circuit handle: %w", err)
	}
	c, err := uc.manager.Get(h)
	if err != nil {
		return DestroyCircuitOutput{}, fmt.Errorf("circuit not found: %w", err)
	}
	reason := in.Reason
	if reason == vo.DestroyNone {
		reason = vo.DestroyFinished
	}
	// ID は破棄後も読めるが先に控えておく
	id := c.ID()
	if err := uc.manager.Destroy(h, reason); err != nil {
		return DestroyCircuitOutput{}, err
	}
	return DestroyCircuitOutput{Handle: h.String(), CircuitID: id.String(), Reason: reason.String()}, nil
}

package usecase

import (
	"sort"
)

// ---------- DTO ----------

type ListCircuitsOutput struct {
	Circuits []BuildCircuitOutput `json:"circuits"`
}

// ---------- UseCase インターフェース ----------

type ListCircuitsUseCase interface {
	Handle() (ListCircuitsOutput, error)
}

// ---------- 実装 ----------

type listCircuitsUseCaseImpl struct {
	manager CircuitManager
}

// コンストラクタ
func NewListCircuitsUseCase(m CircuitManager) ListCircuitsUseCase {
	return &listCircuitsUseCaseImpl{manager: m}
}

// Handle returns live circuits, oldest first.
func (uc *listCircuitsUseCaseImpl) Handle() (ListCircuitsOutput, error) {
	cs, err := uc.manager.List()
	if err != nil {
		return ListCircuitsOutput{}, err
	}
	out := ListCircuitsOutput{Circuits: make([]BuildCircuitOutput, 0, len(cs))}
	for _, c := range cs {
		out.Circuits = append(out.Circuits, CircuitToDTO(c))
	}
	sort.SliceStable(out.Circuits, func(i, j int) bool {
		return out.Circuits[i].CreatedAt.Before(out.Circuits[j].CreatedAt)
	})
	return out, nil
}

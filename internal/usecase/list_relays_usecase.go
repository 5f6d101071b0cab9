package usecase

import (
	"fmt"

	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/repository"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// ---------- DTO ----------

// ListRelaysInput filters by flag names such as "Guard" or "Fast".
type ListRelaysInput struct {
	Flags []string
}

type RelayDTO struct {
	Nickname    string   `json:"nickname"`
	Fingerprint string   `json:"fingerprint"`
	Address     string   `json:"address"`
	Flags       []string `json:"flags"`
}

type ListRelaysOutput struct {
	Relays []RelayDTO `json:"relays"`
}

// ---------- UseCase インターフェース ----------

type ListRelaysUseCase interface {
	Handle(in ListRelaysInput) (ListRelaysOutput, error)
}

// ---------- 実装 ----------

type listRelaysUseCaseImpl struct {
	relays repository.RelayRepository
}

// コンストラクタ
func NewListRelaysUseCase(rr repository.RelayRepository) ListRelaysUseCase {
	return &listRelaysUseCaseImpl{relays: rr}
}

func (uc *listRelaysUseCaseImpl) Handle(in ListRelaysInput) (ListRelaysOutput, error) {
	var (
		ds  []*entity.RelayDescriptor
		err error
	)
	if len(in.Flags) == 0 {
		ds, err = uc.relays.All()
	} else {
		var f vo.RelayFlags
		if f, err = vo.ParseRelayFlags(in.Flags); err != nil {
			return ListRelaysOutput{}, fmt.Errorf("parse flags: %w", err)
		}
		ds, err = uc.relays.FindByFlags(f)
	}
	if err != nil {
		return ListRelaysOutput{}, err
	}

	out := ListRelaysOutput{Relays: make([]RelayDTO, 0, len(ds))}
	for _, d := range ds {
		out.Relays = append(out.Relays, RelayDTO{
			Nickname:    d.Nickname(),
			Fingerprint: d.Fingerprint().String(),
			Address:     d.Endpoint().String(),
			Flags:       d.Flags().Names(),
		})
	}
	return out, nil
}

package repository_test

import (
	"errors"
	"testing"

	"ikedadada/go-torcircuit/internal/domain/aggregate"
	repoif "ikedadada/go-torcircuit/internal/domain/repository"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
	"ikedadada/go-torcircuit/internal/infrastructure/repository"
)

func TestCircuitRepo_Save_Find_Delete(t *testing.T) {
	repo := repository.NewCircuitRepo()
	c := aggregate.NewCircuit(aggregate.CircuitConfig{})

	if err := repo.Save(c); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := repo.Find(c.Handle())
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if got != c {
		t.Errorf("Find returned wrong circuit")
	}
	if err := repo.Delete(c.Handle()); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := repo.Find(c.Handle()); !errors.Is(err, repoif.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(c.Handle()); !errors.Is(err, repoif.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestCircuitRepo_ListActive(t *testing.T) {
	repo := repository.NewCircuitRepo()
	live := aggregate.NewCircuit(aggregate.CircuitConfig{})
	dead := aggregate.NewCircuit(aggregate.CircuitConfig{})
	dead.Destroy(vo.DestroyFinished)
	repo.Save(live)
	repo.Save(dead)

	list, err := repo.ListActive()
	if err != nil {
		t.Fatalf("ListActive error: %v", err)
	}
	if len(list) != 1 || list[0] != live {
		t.Errorf("expected only the live circuit, got %d circuits", len(list))
	}
}

package program

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/masterie/masterie/internal/kvstore"
	"github.com/masterie/masterie/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestList_ReturnsFullCatalog(t *testing.T) {
	store := NewStore(kvstore.NewMemoryStore(), discardLogger())

	programs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(programs) != 6 {
		t.Fatalf("len(programs) = %d, want 6", len(programs))
	}

	available := 0
	for _, p := range programs {
		if p.IsAvailable {
			available++
			if p.ID != "law" {
				t.Errorf("available program = %q, want %q", p.ID, "law")
			}
		}
	}
	if available != 1 {
		t.Errorf("available programs = %d, want 1", available)
	}
}

func TestSelect_AvailableProgram(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	store := NewStore(kv, discardLogger())

	if err := store.Select("law"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if store.Selected() != "law" {
		t.Errorf("Selected() = %q, want %q", store.Selected(), "law")
	}
	if p := store.SelectedProgram(); p == nil || p.Name != "法学" {
		t.Errorf("SelectedProgram() = %+v, want 法学", p)
	}
	if value, ok, _ := kv.Get(kvstore.KeySelectedProgram); !ok || value != "law" {
		t.Errorf("persisted value = %q ok=%v, want %q", value, ok, "law")
	}
}

func TestSelect_UnknownProgram_ReturnsTypedError(t *testing.T) {
	store := NewStore(kvstore.NewMemoryStore(), discardLogger())

	err := store.Select("astrology")
	if err == nil {
		t.Fatal("expected error for unknown program")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeProgramUnknown {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeProgramUnknown)
	}
	if store.Selected() != "" {
		t.Errorf("Selected() = %q, want empty after rejected selection", store.Selected())
	}
}

func TestSelect_UnavailableProgram_ReturnsTypedError(t *testing.T) {
	store := NewStore(kvstore.NewMemoryStore(), discardLogger())

	err := store.Select("economics")
	if err == nil {
		t.Fatal("expected error for unavailable program")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeProgramNotAvailable {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeProgramNotAvailable)
	}
}

func TestSelect_IsIdempotent(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	store := NewStore(kv, discardLogger())

	for i := 0; i < 3; i++ {
		if err := store.Select("law"); err != nil {
			t.Fatalf("Select() #%d error = %v", i+1, err)
		}
	}
	if store.Selected() != "law" {
		t.Errorf("Selected() = %q, want %q", store.Selected(), "law")
	}
}

func TestSelection_RoundTripsAcrossReconstruction(t *testing.T) {
	kv := kvstore.NewMemoryStore()

	first := NewStore(kv, discardLogger())
	if err := first.Select("law"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	second := NewStore(kv, discardLogger())
	if second.Selected() != "law" {
		t.Errorf("restored Selected() = %q, want %q", second.Selected(), "law")
	}
}

func TestNewStore_DiscardsStalePersistedProgram(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	if err := kv.Set(kvstore.KeySelectedProgram, "retired-program"); err != nil {
		t.Fatalf("kv.Set() error = %v", err)
	}

	store := NewStore(kv, discardLogger())
	if store.Selected() != "" {
		t.Errorf("Selected() = %q, want empty for stale persisted value", store.Selected())
	}
	if _, ok, _ := kv.Get(kvstore.KeySelectedProgram); ok {
		t.Error("expected stale persisted value to be deleted")
	}
}

func TestClear_RemovesSelection(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	store := NewStore(kv, discardLogger())

	if err := store.Select("law"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if store.Selected() != "" {
		t.Errorf("Selected() = %q, want empty", store.Selected())
	}
	if _, ok, _ := kv.Get(kvstore.KeySelectedProgram); ok {
		t.Error("expected persisted selection to be removed")
	}
}

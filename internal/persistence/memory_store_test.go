package persistence

import (
	"context"
	"testing"

	"github.com/petrijr/grafo/pkg/api"
)

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreLoadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Save(ctx, "t", map[string]any{"nested": map[string]any{"k": "v"}}, 0, nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	first, err := store.Load(ctx, "t")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	first.Values["nested"].(map[string]any)["k"] = "mutated"

	second, err := store.Load(ctx, "t")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := second.Values["nested"].(map[string]any)["k"]; got != "v" {
		t.Fatalf("loaded checkpoint shares memory with store: %v", got)
	}
}

func TestMemoryHistoryAppendsInOrder(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory()

	for _, typ := range []api.RunEventType{api.EventGraphStarted, api.EventStepCompleted, api.EventGraphCompleted} {
		if err := h.Append(ctx, api.RunEvent{ThreadID: "t", Type: typ}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	evs, err := h.List(ctx, "t")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != 3 || evs[0].Type != api.EventGraphStarted || evs[2].Type != api.EventGraphCompleted {
		t.Fatalf("events = %+v", evs)
	}

	other, _ := h.List(ctx, "unknown")
	if len(other) != 0 {
		t.Fatalf("unknown thread events = %+v", other)
	}
}

package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petrijr/grafo/pkg/api"
)

// runStoreContract exercises the Store contract shared by every backend.
func runStoreContract(t *testing.T, store api.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("load unknown thread", func(t *testing.T) {
		_, err := store.Load(ctx, "nope")
		if !errors.Is(err, api.ErrThreadNotFound) {
			t.Fatalf("err = %v, want ErrThreadNotFound", err)
		}
		if _, err := store.ListSteps(ctx, "nope"); !errors.Is(err, api.ErrThreadNotFound) {
			t.Fatalf("list steps err = %v", err)
		}
	})

	t.Run("save load roundtrip", func(t *testing.T) {
		values := map[string]any{
			"text":   "hello",
			"count":  3,
			"nested": map[string]any{"k": "v"},
			"seq":    []any{"a", "b"},
		}
		meta := map[string]any{"graph": "g"}

		if err := store.Save(ctx, "t1", values, 0, meta); err != nil {
			t.Fatalf("save: %v", err)
		}

		cp, err := store.Load(ctx, "t1")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cp.ThreadID != "t1" || cp.Step != 0 {
			t.Fatalf("checkpoint identity: %+v", cp)
		}
		if cp.Timestamp.IsZero() || time.Since(cp.Timestamp) > time.Minute {
			t.Fatalf("timestamp: %v", cp.Timestamp)
		}
		if cp.Values["text"] != "hello" {
			t.Fatalf("text = %v", cp.Values["text"])
		}
		nested, ok := cp.Values["nested"].(map[string]any)
		if !ok || nested["k"] != "v" {
			t.Fatalf("nested = %#v", cp.Values["nested"])
		}
	})

	t.Run("latest step wins", func(t *testing.T) {
		for step := 0; step < 3; step++ {
			if err := store.Save(ctx, "t2", map[string]any{"step": step}, step, nil); err != nil {
				t.Fatalf("save step %d: %v", step, err)
			}
		}

		cp, err := store.Load(ctx, "t2")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cp.Step != 2 {
			t.Fatalf("latest step = %d, want 2", cp.Step)
		}

		steps, err := store.ListSteps(ctx, "t2")
		if err != nil {
			t.Fatalf("list steps: %v", err)
		}
		if len(steps) != 3 || steps[0] != 0 || steps[2] != 2 {
			t.Fatalf("steps = %v", steps)
		}
	})

	t.Run("exact step and missing step", func(t *testing.T) {
		cp, err := store.LoadStep(ctx, "t2", 1)
		if err != nil {
			t.Fatalf("load step: %v", err)
		}
		if cp.Step != 1 {
			t.Fatalf("step = %d", cp.Step)
		}

		if _, err := store.LoadStep(ctx, "t2", 99); !errors.Is(err, api.ErrStepNotFound) {
			t.Fatalf("missing step err = %v", err)
		}
	})

	t.Run("overwrite same step is idempotent", func(t *testing.T) {
		if err := store.Save(ctx, "t3", map[string]any{"v": "first"}, 0, nil); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := store.Save(ctx, "t3", map[string]any{"v": "second"}, 0, nil); err != nil {
			t.Fatalf("re-save: %v", err)
		}

		cp, err := store.Load(ctx, "t3")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cp.Values["v"] != "second" {
			t.Fatalf("v = %v, want overwrite", cp.Values["v"])
		}
		steps, _ := store.ListSteps(ctx, "t3")
		if len(steps) != 1 {
			t.Fatalf("steps after overwrite = %v", steps)
		}
	})

	t.Run("list threads", func(t *testing.T) {
		threads, err := store.ListThreads(ctx)
		if err != nil {
			t.Fatalf("list threads: %v", err)
		}
		want := map[string]bool{"t1": true, "t2": true, "t3": true}
		found := 0
		for _, id := range threads {
			if want[id] {
				found++
			}
		}
		if found != len(want) {
			t.Fatalf("threads = %v", threads)
		}
	})

	t.Run("delete removes thread", func(t *testing.T) {
		if err := store.Delete(ctx, "t3"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := store.Load(ctx, "t3"); !errors.Is(err, api.ErrThreadNotFound) {
			t.Fatalf("load after delete: %v", err)
		}
		// Deleting again is a no-op.
		if err := store.Delete(ctx, "t3"); err != nil {
			t.Fatalf("second delete: %v", err)
		}
	})

	t.Run("saved values uncoupled from caller", func(t *testing.T) {
		values := map[string]any{"nested": map[string]any{"k": "v"}}
		if err := store.Save(ctx, "t4", values, 0, nil); err != nil {
			t.Fatalf("save: %v", err)
		}

		// Mutate the caller's map after saving; the persisted entry must
		// not see the change.
		values["nested"].(map[string]any)["k"] = "mutated"

		cp, err := store.Load(ctx, "t4")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got := cp.Values["nested"].(map[string]any)["k"]; got != "v" {
			t.Fatalf("persisted value coupled to caller: %v", got)
		}
		_ = store.Delete(ctx, "t4")
	})
}

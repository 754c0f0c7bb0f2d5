package grafo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/grafo/pkg/api"
)

func approvalGraph(t *testing.T) *Graph {
	t.Helper()
	return NewGraph("approval", quiet()).
		Node("prepare", func(s State) map[string]any {
			return map[string]any{"amount": 900}
		}).
		Node("gate", func(ctx context.Context, s State) (NodeResult, error) {
			if approved, _ := s.Value("approved").(bool); approved {
				return Delta(map[string]any{"status": "approved"}), nil
			}
			return Suspend("approval required", map[string]any{"amount": s.Value("amount")}), nil
		}).
		SetEntryPoint("prepare").
		Edge("prepare", "gate").
		SetFinishPoint("gate").
		MustCompile()
}

func TestResumeContinuesPastInterrupt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	g := approvalGraph(t)

	// First run has no interrupt handler: the run parks and terminates
	// cleanly with the pre-interrupt state.
	partial, err := g.Invoke(ctx, map[string]any{"request": "refund"},
		WithStore(store), WithThreadID("order-1"))
	require.NoError(t, err)
	assert.Nil(t, partial.Value("status"))
	assert.Equal(t, 900, partial.Value("amount"))

	steps, err := store.ListSteps(ctx, "order-1")
	require.NoError(t, err)
	require.NotEmpty(t, steps)

	// Supply a handler and resume: the gate re-raises its interrupt, the
	// handler injects the approval, and the run completes.
	g.OnInterrupt(func(i Interrupt) (map[string]any, error) {
		assert.Equal(t, "approval required", i.Message)
		return map[string]any{"approved": true}, nil
	})

	final, err := g.Resume(ctx, "order-1", nil, WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, "approved", final.Value("status"))
	assert.Equal(t, "refund", final.Value("request"), "checkpointed state survived the restart")
}

func TestResumeMergesExtraDelta(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	g := approvalGraph(t)

	_, err := g.Invoke(ctx, nil, WithStore(store), WithThreadID("order-2"))
	require.NoError(t, err)

	final, err := g.Resume(ctx, "order-2", map[string]any{"approved": true}, WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, "approved", final.Value("status"))
}

func TestResumeRequiresStore(t *testing.T) {
	g := approvalGraph(t)
	_, err := g.Resume(context.Background(), "order-3", nil)
	require.Error(t, err)
	assert.True(t, api.IsGraphError(err, api.ErrCodeNoStore))
}

func TestResumeUnknownThread(t *testing.T) {
	g := approvalGraph(t)
	_, err := g.Resume(context.Background(), "missing", nil, WithStore(NewMemoryStore()))
	require.Error(t, err)
	assert.True(t, api.IsGraphError(err, api.ErrCodeUnknownThread))
}

func TestCompletedRunRecordsOneCheckpointPerBarrier(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	g := NewGraph("two-step", quiet()).
		Node("first", func(s State) map[string]any { return map[string]any{"first": true} }).
		Node("second", func(s State) map[string]any { return map[string]any{"second": true} }).
		SetEntryPoint("first").
		Edge("first", "second").
		SetFinishPoint("second").
		MustCompile()

	_, err := g.Invoke(ctx, nil, WithStore(store), WithThreadID("two-step-run"))
	require.NoError(t, err)

	steps, err := store.ListSteps(ctx, "two-step-run")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, steps)
}

func TestResumeWithFileStore(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir(), FileJSON)
	g := approvalGraph(t)

	_, err := g.Invoke(ctx, map[string]any{"note": "file-backed"},
		WithStore(store), WithThreadID("order-4"))
	require.NoError(t, err)

	g.OnInterrupt(func(i Interrupt) (map[string]any, error) {
		return map[string]any{"approved": true}, nil
	})

	final, err := g.Resume(ctx, "order-4", nil, WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, "approved", final.Value("status"))
	assert.Equal(t, "file-backed", final.Value("note"))
}

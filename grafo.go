package grafo

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/grafo/internal/persistence"
	"github.com/petrijr/grafo/internal/runner"
	"github.com/petrijr/grafo/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	State                = api.State
	ReducerFunc          = api.ReducerFunc
	Node                 = api.Node
	NodeFunc             = api.NodeFunc
	NodeResult           = api.NodeResult
	Command              = api.Command
	Send                 = api.Send
	Interrupt            = api.Interrupt
	Edge                 = api.Edge
	RouterFunc           = api.RouterFunc
	RetryPolicy          = api.RetryPolicy
	Checkpoint           = api.Checkpoint
	Store                = api.Store
	Observer             = api.Observer
	NoopObserver         = api.NoopObserver
	CompositeObserver    = api.CompositeObserver
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	HistoryObserver      = api.HistoryObserver
	History              = api.History
	RunEvent             = api.RunEvent
	Message              = api.Message
	ToolCall             = api.ToolCall
	ToolSchema           = api.ToolSchema
	Tool                 = api.Tool
	ToolFunc             = api.ToolFunc
	ChatModel            = api.ChatModel
	ChatResponse         = api.ChatResponse
	GraphError           = api.GraphError
	NodeError            = api.NodeError
	StateError           = api.StateError
	StepSummary          = runner.StepSummary
	InterruptHandler     = runner.InterruptHandler
)

// Synthetic node names.
const (
	Start  = api.Start
	Finish = api.Finish
)

// Run history event types.
const (
	EventGraphStarted     = api.EventGraphStarted
	EventGraphCompleted   = api.EventGraphCompleted
	EventNodeStarted      = api.EventNodeStarted
	EventNodeCompleted    = api.EventNodeCompleted
	EventNodeFailed       = api.EventNodeFailed
	EventStepCompleted    = api.EventStepCompleted
	EventInterruptRaised  = api.EventInterruptRaised
	EventCheckpointSaved  = api.EventCheckpointSaved
	EventCommandProcessed = api.EventCommandProcessed
)

// Result constructors and built-in reducers.

var (
	Delta   = api.Delta
	Goto    = api.Goto
	SendTo  = api.SendTo
	Fan     = api.Fan
	Suspend = api.Suspend

	AppendReducer   = api.AppendReducer
	ConcatReducer   = api.ConcatReducer
	MergeMapReducer = api.MergeMapReducer

	NewCompositeObserver = api.NewCompositeObserver
	NewLoggingObserver   = api.NewLoggingObserver
	NewHistoryObserver   = api.NewHistoryObserver

	DecodeState = api.DecodeState
)

// TypedNode wraps a strongly-typed function into a NodeFunc; the state is
// decoded into T before each call.
func TypedNode[T any](fn func(ctx context.Context, in T) (map[string]any, error)) NodeFunc {
	return api.TypedNode(fn)
}

// Store constructors
// These wrap the internal/persistence package so external callers never
// need to import internal packages.

// NewMemoryStore returns a Store backed entirely by in-process maps.
func NewMemoryStore() Store {
	return persistence.NewMemoryStore()
}

// FileJSON and FileYAML select the file store's textual encoding.
var (
	FileJSON persistence.Codec = persistence.JSONCodec{}
	FileYAML persistence.Codec = persistence.YAMLCodec{}
)

// NewFileStore returns a Store that keeps one directory per thread and one
// file per step under dir. codec may be FileJSON (default when nil) or
// FileYAML.
func NewFileStore(dir string, codec persistence.Codec) Store {
	return persistence.NewFileStore(dir, codec)
}

// NewSQLiteStore returns a Store that persists checkpoints in a SQLite
// database. The caller imports the driver, e.g. "modernc.org/sqlite".
func NewSQLiteStore(db *sql.DB) (Store, error) {
	return persistence.NewSQLiteStore(db)
}

// NewRedisStore returns a Store that persists checkpoints in Redis under
// the given key prefix ("grafo:" when empty).
func NewRedisStore(client *redis.Client, prefix string) Store {
	return persistence.NewRedisStore(client, prefix)
}

// NewMongoStore returns a Store that persists checkpoints in the given
// MongoDB collection.
func NewMongoStore(ctx context.Context, coll *mongo.Collection) (Store, error) {
	return persistence.NewMongoStore(ctx, coll)
}

// History constructors.

// NewMemoryHistory returns an in-process append-only run event log.
func NewMemoryHistory() History {
	return persistence.NewMemoryHistory()
}

// NewSQLiteHistory returns a run event log persisted in SQLite. It can
// share a database with NewSQLiteStore.
func NewSQLiteHistory(db *sql.DB) (History, error) {
	return persistence.NewSQLiteHistory(db)
}

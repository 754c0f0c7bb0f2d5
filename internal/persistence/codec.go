// Package persistence provides the checkpoint Store implementations: an
// in-memory store for tests and single-process runs, a file store with JSON
// and YAML encodings, and SQLite, Redis and Mongo backed stores. It also
// holds the run-history stores.
package persistence

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/petrijr/grafo/pkg/api"
)

func init() {
	// State values travel as interface entries; gob needs the concrete
	// types registered once. Callers storing custom struct values register
	// them the same way.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(map[string]string{})
	gob.Register([]string{})
	gob.Register(time.Time{})
	gob.Register(api.Message{})
	gob.Register(api.ToolCall{})
}

// encodeValues serializes a value map with encoding/gob. Values must be
// gob-encodable.
func encodeValues(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeValues(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

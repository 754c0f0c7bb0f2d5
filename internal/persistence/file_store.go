package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/grafo/pkg/api"
)

// Codec is a textual checkpoint file encoding.
type Codec interface {
	Marshal(f checkpointFile) ([]byte, error)
	Unmarshal(data []byte, f *checkpointFile) error
	Ext() string
}

// checkpointFile is the on-disk payload: everything in a Checkpoint except
// the thread id and step, which live in the path.
type checkpointFile struct {
	State     map[string]any `json:"state" yaml:"state"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// JSONCodec stores checkpoints as pretty-printed JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(f checkpointFile) ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}

func (JSONCodec) Unmarshal(data []byte, f *checkpointFile) error {
	return json.Unmarshal(data, f)
}

func (JSONCodec) Ext() string { return "json" }

// YAMLCodec stores checkpoints as YAML documents.
type YAMLCodec struct{}

func (YAMLCodec) Marshal(f checkpointFile) ([]byte, error) { return yaml.Marshal(f) }

func (YAMLCodec) Unmarshal(data []byte, f *checkpointFile) error {
	return yaml.Unmarshal(data, f)
}

func (YAMLCodec) Ext() string { return "yaml" }

// FileStore persists checkpoints under a directory: one subdirectory per
// thread id, one file per step named <step>.<ext>. Loading without a step
// picks the file with the numerically largest name.
//
// Textual codecs round-trip values through their encoding, so loaded states
// are behaviorally equivalent rather than type-identical (JSON, for one,
// reads integers back as float64).
type FileStore struct {
	dir   string
	codec Codec
	mu    sync.Mutex
}

var _ api.Store = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir using codec (JSONCodec when
// nil). The directory is created on first save.
func NewFileStore(dir string, codec Codec) *FileStore {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &FileStore{dir: dir, codec: codec}
}

func (s *FileStore) threadDir(threadID string) string {
	return filepath.Join(s.dir, threadID)
}

func (s *FileStore) stepPath(threadID string, step int) string {
	return filepath.Join(s.threadDir(threadID), fmt.Sprintf("%d.%s", step, s.codec.Ext()))
}

func (s *FileStore) Save(ctx context.Context, threadID string, values map[string]any, step int, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.threadDir(threadID), 0o755); err != nil {
		return err
	}
	data, err := s.codec.Marshal(checkpointFile{
		State:     values,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(s.stepPath(threadID, step), data, 0o644)
}

func (s *FileStore) Load(ctx context.Context, threadID string) (*api.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, err := s.steps(threadID)
	if err != nil {
		return nil, err
	}
	return s.read(threadID, steps[len(steps)-1])
}

func (s *FileStore) LoadStep(ctx context.Context, threadID string, step int) (*api.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.steps(threadID); err != nil {
		return nil, err
	}
	cp, err := s.read(threadID, step)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, api.ErrStepNotFound
	}
	return cp, err
}

func (s *FileStore) ListThreads(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) ListSteps(ctx context.Context, threadID string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.steps(threadID)
}

func (s *FileStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return os.RemoveAll(s.threadDir(threadID))
}

// steps returns the ascending step numbers found in the thread directory.
func (s *FileStore) steps(threadID string) ([]int, error) {
	entries, err := os.ReadDir(s.threadDir(threadID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, api.ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}

	suffix := "." + s.codec.Ext()
	var steps []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, suffix))
		if err != nil {
			continue
		}
		steps = append(steps, n)
	}
	if len(steps) == 0 {
		return nil, api.ErrThreadNotFound
	}
	sort.Ints(steps)
	return steps, nil
}

func (s *FileStore) read(threadID string, step int) (*api.Checkpoint, error) {
	data, err := os.ReadFile(s.stepPath(threadID, step))
	if err != nil {
		return nil, err
	}
	var f checkpointFile
	if err := s.codec.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s step %d: %w", threadID, step, err)
	}
	return &api.Checkpoint{
		ThreadID:  threadID,
		Step:      step,
		Values:    f.State,
		Timestamp: f.Timestamp,
		Metadata:  f.Metadata,
	}, nil
}

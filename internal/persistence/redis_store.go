package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/grafo/pkg/api"
)

// RedisStore is a Store backed by Redis. It uses a simple key structure:
//
//	<prefix>cp:<thread>:<step>  => gob-encoded redisCheckpointPayload
//	<prefix>idx:threads         => SET of all thread ids
//	<prefix>idx:steps:<thread>  => SET of step numbers for a thread
//
// The indexes are always updated on Save; lookups use them for listing and
// latest-step resolution.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ api.Store = (*RedisStore)(nil)

type redisCheckpointPayload struct {
	Step      int
	State     []byte
	Metadata  []byte
	CreatedAt time.Time
}

// NewRedisStore creates a RedisStore. prefix is optional but recommended
// (e.g. "grafo:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "grafo:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) keyCheckpoint(threadID string, step int) string {
	return s.prefix + "cp:" + threadID + ":" + strconv.Itoa(step)
}

func (s *RedisStore) keyThreads() string {
	return s.prefix + "idx:threads"
}

func (s *RedisStore) keySteps(threadID string) string {
	return s.prefix + "idx:steps:" + threadID
}

func (s *RedisStore) Save(ctx context.Context, threadID string, values map[string]any, step int, metadata map[string]any) error {
	state, err := encodeValues(values)
	if err != nil {
		return err
	}
	meta, err := encodeValues(metadata)
	if err != nil {
		return err
	}

	payload := redisCheckpointPayload{
		Step:      step,
		State:     state,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keyCheckpoint(threadID, step), buf.Bytes(), 0)
	pipe.SAdd(ctx, s.keyThreads(), threadID)
	pipe.SAdd(ctx, s.keySteps(threadID), step)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Load(ctx context.Context, threadID string) (*api.Checkpoint, error) {
	steps, err := s.ListSteps(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return s.LoadStep(ctx, threadID, steps[len(steps)-1])
}

func (s *RedisStore) LoadStep(ctx context.Context, threadID string, step int) (*api.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.keyCheckpoint(threadID, step)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			if n, nerr := s.client.Exists(ctx, s.keySteps(threadID)).Result(); nerr == nil && n > 0 {
				return nil, api.ErrStepNotFound
			}
			return nil, api.ErrThreadNotFound
		}
		return nil, err
	}

	var payload redisCheckpointPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, err
	}
	values, err := decodeValues(payload.State)
	if err != nil {
		return nil, err
	}
	meta, err := decodeValues(payload.Metadata)
	if err != nil {
		return nil, err
	}

	return &api.Checkpoint{
		ThreadID:  threadID,
		Step:      payload.Step,
		Values:    values,
		Timestamp: payload.CreatedAt,
		Metadata:  meta,
	}, nil
}

func (s *RedisStore) ListThreads(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.keyThreads()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) ListSteps(ctx context.Context, threadID string) ([]int, error) {
	members, err := s.client.SMembers(ctx, s.keySteps(threadID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if len(members) == 0 {
		return nil, api.ErrThreadNotFound
	}

	steps := make([]int, 0, len(members))
	for _, m := range members {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		steps = append(steps, n)
	}
	sort.Ints(steps)
	return steps, nil
}

func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	steps, err := s.ListSteps(ctx, threadID)
	if errors.Is(err, api.ErrThreadNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(steps)+1)
	for _, step := range steps {
		keys = append(keys, s.keyCheckpoint(threadID, step))
	}
	keys = append(keys, s.keySteps(threadID))

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, s.keyThreads(), threadID)
	_, err = pipe.Exec(ctx)
	return err
}

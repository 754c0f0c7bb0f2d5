package persistence

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/grafo/pkg/api"
)

// MongoStore is a Store backed by a MongoDB collection. One document per
// (thread, step); state and metadata travel as gob blobs inside the
// document, so arbitrary Go values survive without a BSON mapping.
type MongoStore struct {
	coll *mongo.Collection
}

var _ api.Store = (*MongoStore)(nil)

type mongoCheckpointDoc struct {
	ThreadID  string    `bson:"thread_id"`
	Step      int       `bson:"step"`
	State     []byte    `bson:"state"`
	Metadata  []byte    `bson:"metadata"`
	CreatedAt time.Time `bson:"created_at"`
}

// NewMongoStore creates a MongoStore over the given collection and ensures
// the (thread_id, step) unique index exists.
func NewMongoStore(ctx context.Context, coll *mongo.Collection) (*MongoStore, error) {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "thread_id", Value: 1}, {Key: "step", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &MongoStore{coll: coll}, nil
}

func (s *MongoStore) Save(ctx context.Context, threadID string, values map[string]any, step int, metadata map[string]any) error {
	state, err := encodeValues(values)
	if err != nil {
		return err
	}
	meta, err := encodeValues(metadata)
	if err != nil {
		return err
	}

	doc := mongoCheckpointDoc{
		ThreadID:  threadID,
		Step:      step,
		State:     state,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	filter := bson.M{"thread_id": threadID, "step": step}
	_, err = s.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Load(ctx context.Context, threadID string) (*api.Checkpoint, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "step", Value: -1}})
	res := s.coll.FindOne(ctx, bson.M{"thread_id": threadID}, opts)
	return s.decode(ctx, res, threadID, false)
}

func (s *MongoStore) LoadStep(ctx context.Context, threadID string, step int) (*api.Checkpoint, error) {
	res := s.coll.FindOne(ctx, bson.M{"thread_id": threadID, "step": step})
	return s.decode(ctx, res, threadID, true)
}

func (s *MongoStore) decode(ctx context.Context, res *mongo.SingleResult, threadID string, exactStep bool) (*api.Checkpoint, error) {
	var doc mongoCheckpointDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if exactStep {
				n, cerr := s.coll.CountDocuments(ctx, bson.M{"thread_id": threadID})
				if cerr == nil && n > 0 {
					return nil, api.ErrStepNotFound
				}
			}
			return nil, api.ErrThreadNotFound
		}
		return nil, err
	}

	values, err := decodeValues(doc.State)
	if err != nil {
		return nil, err
	}
	meta, err := decodeValues(doc.Metadata)
	if err != nil {
		return nil, err
	}

	return &api.Checkpoint{
		ThreadID:  doc.ThreadID,
		Step:      doc.Step,
		Values:    values,
		Timestamp: doc.CreatedAt,
		Metadata:  meta,
	}, nil
}

func (s *MongoStore) ListThreads(ctx context.Context) ([]string, error) {
	raw, err := s.coll.Distinct(ctx, "thread_id", bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MongoStore) ListSteps(ctx context.Context, threadID string) ([]int, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "step", Value: 1}}).
		SetProjection(bson.M{"step": 1})
	cur, err := s.coll.Find(ctx, bson.M{"thread_id": threadID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []int
	for cur.Next(ctx) {
		var doc struct {
			Step int `bson:"step"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.Step)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, api.ErrThreadNotFound
	}
	return out, nil
}

func (s *MongoStore) Delete(ctx context.Context, threadID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"thread_id": threadID})
	return err
}

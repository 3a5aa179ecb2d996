// Package mongostore implements experience.Store on top of MongoDB,
// grounded on the teacher's features/memory/mongo client wrapper: a thin
// collection seam for testability, bson documents mirroring the domain
// type, and query translation at the boundary.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/agentruntime/core/experience"
)

const (
	defaultCollection = "experiences"
	defaultTimeout    = 5 * time.Second
)

// Options configures the Mongo-backed Store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements experience.Store by delegating to a MongoDB collection.
type Store struct {
	coll    collection
	timeout time.Duration
}

// NewStore builds a Mongo-backed experience store using the provided
// MongoDB client.
func NewStore(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	mcoll := opts.Client.Database(opts.Database).Collection(collName)
	wrapper := mongoCollection{coll: mcoll}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return &Store{coll: wrapper, timeout: timeout}, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Save upserts e by ID, assigning one if blank.
func (s *Store) Save(ctx context.Context, e *experience.Experience) error {
	if e == nil {
		return errors.New("mongostore: experience is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.upsert(ctx, e)
}

// BatchSave saves each experience individually (atomic per entry, not
// across entries, per the domain's shared-resource policy).
func (s *Store) BatchSave(ctx context.Context, es []*experience.Experience) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	for _, e := range es {
		if e == nil {
			continue
		}
		if err := s.upsert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, e *experience.Experience) error {
	if e.ID == "" {
		e.ID = bson.NewObjectID().Hex()
	}
	doc := toDocument(e)
	filter := bson.M{"_id": e.ID}
	_, err := s.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Store) FindByID(ctx context.Context, id string) (*experience.Experience, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc document
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, errors.New("mongostore: experience not found")
		}
		return nil, err
	}
	return fromDocument(doc), nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.coll.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (s *Store) CountByTypeAndScope(ctx context.Context, t experience.Type, sc experience.Scope) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.coll.CountDocuments(ctx, bson.M{"type": string(t), "scope": string(sc)})
	return int(n), err
}

func (s *Store) FindByTypeAndScope(ctx context.Context, t experience.Type, sc experience.Scope, owner, project string) ([]*experience.Experience, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"type": string(t), "scope": string(sc)}
	if owner != "" {
		filter["owner"] = owner
	}
	if project != "" {
		filter["project"] = project
	}
	docs, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*experience.Experience, len(docs))
	for i, d := range docs {
		out[i] = fromDocument(d)
	}
	return out, nil
}

// Query loads every experience matching q's structural filters (type,
// language, scope, tags) and delegates specificity ranking against qc to
// the in-memory scope-rank logic shared with MemoryStore, since that
// ranking depends on per-query context rather than anything indexable.
func (s *Store) Query(ctx context.Context, q experience.Query, qc experience.QueryContext) ([]*experience.Experience, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.M{}
	if q.Type != "" {
		filter["type"] = string(q.Type)
	}
	if q.Language != "" {
		filter["language"] = q.Language
	}
	if q.Scope != "" {
		filter["scope"] = string(q.Scope)
	}
	if len(q.Tags) > 0 {
		filter["tags"] = bson.M{"$all": q.Tags}
	}
	docs, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	candidates := make([]*experience.Experience, len(docs))
	for i, d := range docs {
		candidates[i] = fromDocument(d)
	}
	return experience.RankAndSort(candidates, qc), nil
}

func ensureIndexes(ctx context.Context, coll collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys: bson.D{{Key: "type", Value: 1}, {Key: "scope", Value: 1}},
	})
	return err
}

// collection is the narrow seam this package depends on, so tests can
// substitute a fake instead of a live MongoDB deployment.
type collection interface {
	ReplaceOne(ctx context.Context, filter, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongodriver.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOptions]) (*mongodriver.DeleteResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	Find(ctx context.Context, filter any) ([]document, error)
	CountDocuments(ctx context.Context, filter any) (int64, error)
	Indexes() indexView
}

type singleResult interface {
	Decode(val any) error
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) ReplaceOne(ctx context.Context, filter, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.ReplaceOne(ctx, filter, replacement, opts...)
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOptions]) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter, opts...)
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c mongoCollection) Find(ctx context.Context, filter any) ([]document, error) {
	cur, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c mongoCollection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	return c.coll.CountDocuments(ctx, filter)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}

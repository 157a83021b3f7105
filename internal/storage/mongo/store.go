package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/syntrixbase/livequery/internal/storage/config"
	"github.com/syntrixbase/livequery/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// errImmutableField is the server code for an attempt to modify _id.
const errImmutableField = 66

// Store keeps records as top-level documents of one collection, with the
// record id as _id.
type Store struct {
	client     *mongo.Client
	coll       *mongo.Collection
	collation  *options.Collation
	ownsClient bool
}

// Open connects to cfg.URI and verifies the connection.
func Open(ctx context.Context, cfg config.MongoConfig, locale string) (*Store, error) {
	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := New(client.Database(cfg.DatabaseName).Collection(cfg.Collection), locale)
	s.client = client
	s.ownsClient = true
	return s, nil
}

// New wraps an existing collection. The caller keeps ownership of its client.
func New(coll *mongo.Collection, locale string) *Store {
	s := &Store{coll: coll}
	if locale != "" && locale != "und" {
		s.collation = &options.Collation{Locale: locale}
	}
	return s
}

func (s *Store) Count(ctx context.Context, q model.Query) (int, error) {
	filter, err := makeFilterBSON(q)
	if err != nil {
		return 0, err
	}
	opts := options.Count()
	if s.collation != nil {
		opts.SetCollation(s.collation)
	}
	n, err := s.coll.CountDocuments(ctx, filter, opts)
	if err != nil {
		return 0, model.WrapError(err)
	}
	return int(n), nil
}

func (s *Store) Read(ctx context.Context, q model.Query, order []model.Order, pageSize, skip int) ([]model.Document, error) {
	filter, err := makeFilterBSON(q)
	if err != nil {
		return nil, err
	}

	findOptions := options.Find()
	if len(order) > 0 {
		findOptions.SetSort(makeSortBSON(order))
	}
	if skip > 0 {
		findOptions.SetSkip(int64(skip))
	}
	if pageSize > 0 {
		findOptions.SetLimit(int64(pageSize))
	}
	if s.collation != nil {
		findOptions.SetCollation(s.collation)
	}

	cursor, err := s.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, model.WrapError(err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, model.WrapError(err)
	}

	docs := make([]model.Document, len(raw))
	for i, m := range raw {
		docs[i] = fromBSON(m)
	}
	return docs, nil
}

func (s *Store) FindOne(ctx context.Context, q model.Query) (model.Document, error) {
	filter, err := makeFilterBSON(q)
	if err != nil {
		return nil, err
	}
	opts := options.FindOne()
	if s.collation != nil {
		opts.SetCollation(s.collation)
	}

	var raw bson.M
	if err := s.coll.FindOne(ctx, filter, opts).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	return fromBSON(raw), nil
}

func (s *Store) InsertOne(ctx context.Context, doc model.Document) error {
	if err := doc.ValidateDocument(); err != nil {
		return err
	}
	doc = doc.Clone()
	doc.GenerateIDIfEmpty()

	_, err := s.coll.InsertOne(ctx, toBSON(doc))
	if mongo.IsDuplicateKeyError(err) {
		return model.ErrExists
	}
	return model.WrapError(err)
}

func (s *Store) UpdateOne(ctx context.Context, q model.Query, doc model.Document) error {
	if err := doc.ValidateDocument(); err != nil {
		return err
	}
	filter, err := makeFilterBSON(q)
	if err != nil {
		return err
	}
	opts := options.Replace()
	if s.collation != nil {
		opts.SetCollation(s.collation)
	}

	result, err := s.coll.ReplaceOne(ctx, filter, toBSON(doc), opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrExists
		}
		var se mongo.ServerError
		if errors.As(err, &se) && se.HasErrorCode(errImmutableField) {
			return model.ErrIDChanged
		}
		return model.WrapError(err)
	}
	if result.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteOne(ctx context.Context, q model.Query) (model.Document, error) {
	filter, err := makeFilterBSON(q)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndDelete()
	if s.collation != nil {
		opts.SetCollation(s.collation)
	}

	var raw bson.M
	if err := s.coll.FindOneAndDelete(ctx, filter, opts).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	return fromBSON(raw), nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.ownsClient && s.client != nil {
		return s.client.Disconnect(ctx)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

const (
	dbName            = "gastro_leads"
	recordsCollection = "records"
	stagingCollection = "records_staging"
	runsCollection    = "runs"
	contactsCol       = "contacts"

	contactsTTLDays = 30
	runsTTLDays     = 180
)

// MongoStore mirrors the consolidated store in MongoDB and keeps the run log
// and the contacts L2 cache.
type MongoStore struct {
	mc  *mongo.Client
	mdb *mongo.Database

	deriver Deriver
}

// NewMongo connects to MongoDB and ensures indices. d may be nil.
func NewMongo(ctx context.Context, uri string, d Deriver) (*MongoStore, error) {
	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: mongo connect: %w", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, fmt.Errorf("store: mongo ping: %w", err)
	}

	s := &MongoStore{mc: mc, mdb: mc.Database(dbName), deriver: d}
	if err := s.ensureIndices(ctx); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Disconnect closes the MongoDB connection.
func (s *MongoStore) Disconnect(ctx context.Context) error {
	return s.mc.Disconnect(ctx)
}

func (s *MongoStore) ensureIndices(ctx context.Context) error {
	if _, err := s.mdb.Collection(contactsCol).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}); err != nil {
		return fmt.Errorf("store: contacts indices: %w", err)
	}

	if _, err := s.mdb.Collection(runsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "started_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(runsTTLDays * 24 * 3600)),
	}); err != nil {
		return fmt.Errorf("store: runs indices: %w", err)
	}
	return nil
}

// ─── Records ──────────────────────────────────────────────────────────────────

// Load returns all records ranked by rating, then reviews.
func (s *MongoStore) Load(ctx context.Context) ([]domain.BusinessRecord, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "rating", Value: -1},
		{Key: "review_count", Value: -1},
	})
	cursor, err := s.mdb.Collection(recordsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: find records: %w", err)
	}
	defer cursor.Close(ctx)

	recs := []domain.BusinessRecord{}
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("%w: mongo records: %v", ErrCorrupt, err)
	}
	derive(s.deriver, recs)
	return recs, nil
}

// Save replaces the records collection: documents go to a staging collection
// which is then renamed over the live one.
func (s *MongoStore) Save(ctx context.Context, recs []domain.BusinessRecord) (domain.Stats, error) {
	staging := s.mdb.Collection(stagingCollection)
	if err := staging.Drop(ctx); err != nil {
		return domain.Stats{}, fmt.Errorf("store: drop staging: %w", err)
	}

	if len(recs) == 0 {
		if err := s.mdb.Collection(recordsCollection).Drop(ctx); err != nil {
			return domain.Stats{}, fmt.Errorf("store: drop records: %w", err)
		}
	} else {
		docs := make([]any, 0, len(recs))
		for _, r := range recs {
			docs = append(docs, r)
		}
		if _, err := staging.InsertMany(ctx, docs); err != nil {
			return domain.Stats{}, fmt.Errorf("store: insert staging: %w", err)
		}

		cmd := bson.D{
			{Key: "renameCollection", Value: dbName + "." + stagingCollection},
			{Key: "to", Value: dbName + "." + recordsCollection},
			{Key: "dropTarget", Value: true},
		}
		if err := s.mc.Database("admin").RunCommand(ctx, cmd).Err(); err != nil {
			return domain.Stats{}, fmt.Errorf("store: swap records: %w", err)
		}
	}

	stats := ComputeStats(recs)
	LogStats("mongo:"+dbName+"."+recordsCollection, stats, recs)
	return stats, nil
}

// ─── Runs ─────────────────────────────────────────────────────────────────────

// SaveRun records a pipeline execution.
func (s *MongoStore) SaveRun(ctx context.Context, run domain.RunSummary) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.mdb.Collection(runsCollection).ReplaceOne(ctx, bson.M{"_id": run.ID}, run, opts); err != nil {
		return fmt.Errorf("store: save run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *MongoStore) RecentRuns(ctx context.Context, limit int64) ([]domain.RunSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := s.mdb.Collection(runsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: find runs: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeRuns(ctx, cursor)
}

// runCursor is the part of *mongo.Cursor used by decodeRuns.
type runCursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
}

// decodeRuns skips documents that no longer fit RunSummary.
func decodeRuns(ctx context.Context, cur runCursor) ([]domain.RunSummary, error) {
	var runs []domain.RunSummary
	for cur.Next(ctx) {
		var r domain.RunSummary
		if err := cur.Decode(&r); err != nil {
			log.Warn().Err(err).Msg("skipping undecodable run")
			continue
		}
		runs = append(runs, r)
	}
	if err := cur.Err(); err != nil {
		return runs, fmt.Errorf("store: read runs: %w", err)
	}
	return runs, nil
}

// ─── Contacts cache ───────────────────────────────────────────────────────────

// CachedContacts is the MongoDB document for one website's contacts.
type CachedContacts struct {
	Key       string          `bson:"_id"`
	URL       string          `bson:"url"`
	Contacts  domain.Contacts `bson:"contacts"`
	UpdatedAt time.Time       `bson:"updated_at"`
	ExpiresAt time.Time       `bson:"expires_at"`
}

// GetContacts returns cached contacts for key, or nil on miss.
func (s *MongoStore) GetContacts(ctx context.Context, key string) (*domain.Contacts, error) {
	var doc CachedContacts
	err := s.mdb.Collection(contactsCol).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get contacts: %w", err)
	}
	return &doc.Contacts, nil
}

// SaveContacts upserts the contacts found on url.
func (s *MongoStore) SaveContacts(ctx context.Context, key, url string, c domain.Contacts) error {
	now := time.Now().UTC()
	doc := CachedContacts{
		Key:       key,
		URL:       url,
		Contacts:  c,
		UpdatedAt: now,
		ExpiresAt: now.Add(contactsTTLDays * 24 * time.Hour),
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.mdb.Collection(contactsCol).UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": doc}, opts); err != nil {
		return fmt.Errorf("store: save contacts: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	logx "funnelbot/pkg/logx"
)

const (
	defaultDatabase   = "funnelbot"
	recipientsColl    = "recipients"
	defaultOpTimeout  = 5 * time.Second
	defaultConnectTTL = 10 * time.Second
)

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type mongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    logx.Logger
	opTTL  time.Duration
}

// OpenMongo connects to the document store and pings it once so a bad
// connection string fails at startup, not on the first upsert.
func OpenMongo(ctx context.Context, cfg MongoConfig, log logx.Logger) (Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	ttl := cfg.Timeout
	if ttl <= 0 {
		ttl = defaultConnectTTL
	}
	db := cfg.Database
	if db == "" {
		db = defaultDatabase
	}

	cctx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Info("mongo connected", logx.String("db", db))
	return &mongoStore{
		client: client,
		coll:   client.Database(db).Collection(recipientsColl),
		log:    log,
		opTTL:  defaultOpTimeout,
	}, nil
}

func (s *mongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTTL)
}

func (s *mongoStore) Enroll(ctx context.Context, p Profile) error {
	octx, cancel := s.withTimeout(ctx)
	defer cancel()

	set := bson.M{"eligible": true}
	ins := bson.M{"joined_at": time.Now().UTC()}
	// Profile fields are first-write-wins.
	if p.FirstName != "" {
		ins["first_name"] = p.FirstName
	}
	if p.Username != "" {
		ins["username"] = p.Username
	}

	_, err := s.coll.UpdateOne(octx,
		bson.M{"_id": p.ID},
		bson.M{"$set": set, "$setOnInsert": ins},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *mongoStore) Touch(ctx context.Context, p Profile) error {
	octx, cancel := s.withTimeout(ctx)
	defer cancel()

	// Eligible is written only on insert; a casual message must never
	// re-enable a recipient the transport reported as gone.
	ins := bson.M{
		"joined_at": time.Now().UTC(),
		"eligible":  true,
	}
	if p.FirstName != "" {
		ins["first_name"] = p.FirstName
	}
	if p.Username != "" {
		ins["username"] = p.Username
	}

	_, err := s.coll.UpdateOne(octx,
		bson.M{"_id": p.ID},
		bson.M{"$setOnInsert": ins},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *mongoStore) SetEligible(ctx context.Context, id int64, eligible bool) error {
	octx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.UpdateOne(octx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"eligible": eligible}},
	)
	return err
}

func (s *mongoStore) SetGoal(ctx context.Context, id int64, goal string) error {
	octx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.UpdateOne(octx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"goal": goal}},
	)
	return err
}

func (s *mongoStore) SetPrivileged(ctx context.Context, id int64) error {
	octx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.UpdateOne(octx,
		bson.M{"_id": id},
		bson.M{
			"$set":         bson.M{"privileged": true},
			"$setOnInsert": bson.M{"joined_at": time.Now().UTC(), "eligible": true},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *mongoStore) Get(ctx context.Context, id int64) (Recipient, bool, error) {
	octx, cancel := s.withTimeout(ctx)
	defer cancel()

	var r Recipient
	err := s.coll.FindOne(octx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Recipient{}, false, nil
	}
	if err != nil {
		return Recipient{}, false, err
	}
	return r, true, nil
}

func (s *mongoStore) FindEligible(ctx context.Context) ([]Recipient, error) {
	octx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cur, err := s.coll.Find(octx,
		bson.M{"eligible": true},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	var out []Recipient
	if err := cur.All(octx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *mongoStore) CountAll(ctx context.Context) (int64, error) {
	octx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.coll.CountDocuments(octx, bson.M{})
}

func (s *mongoStore) CountBlocked(ctx context.Context) (int64, error) {
	octx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.coll.CountDocuments(octx, bson.M{"eligible": false})
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

package collstats_exporter //nolint:golint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/grafana/collstats-exporter/pkg/build"
	"github.com/grafana/collstats-exporter/pkg/collstats"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// OplogNamespace is the namespace of the replica set oplog.
var OplogNamespace = collstats.Namespace{Database: "local", Collection: "oplog.rs"}

// ErrEmptyOplog is returned by Source.OplogWindow when the oplog holds no
// entries with a timestamp.
var ErrEmptyOplog = errors.New("oplog has no entries")

// StatsOptions selects the optional blocks requested from $collStats.
type StatsOptions struct {
	Histograms   bool
	WiredTiger   bool
	IndexDetails bool
}

// IndexAccess is a single result of the $indexStats stage.
type IndexAccess struct {
	Name     string `bson:"name"`
	Host     string `bson:"host"`
	Shard    string `bson:"shard,omitempty"`
	Accesses struct {
		Ops   int64     `bson:"ops"`
		Since time.Time `bson:"since"`
	} `bson:"accesses"`
}

// OplogWindow is the time span covered by the oplog.
type OplogWindow struct {
	First time.Time
	Last  time.Time
}

// Duration returns the length of the window.
func (w OplogWindow) Duration() time.Duration {
	return w.Last.Sub(w.First)
}

// Source retrieves statistics from a MongoDB deployment.
type Source interface {
	// Ping checks that the deployment can be reached.
	Ping(ctx context.Context) error

	// CollStats runs the $collStats stage against ns. Sharded collections
	// return one document per shard.
	CollStats(ctx context.Context, ns collstats.Namespace, opts StatsOptions) ([]collstats.Stats, error)

	// IndexStats runs the $indexStats stage against ns.
	IndexStats(ctx context.Context, ns collstats.Namespace) ([]IndexAccess, error)

	// ListCollections returns every collection outside of the excluded
	// databases, skipping views and system collections.
	ListCollections(ctx context.Context, exclude []string) ([]collstats.Namespace, error)

	// OplogWindow returns the timestamps of the first and last oplog
	// entries.
	OplogWindow(ctx context.Context) (OplogWindow, error)

	// Close releases the connections of the source.
	Close(ctx context.Context) error
}

type mongoSource struct {
	client *mongo.Client
}

var _ Source = (*mongoSource)(nil)

// NewMongoSource returns a Source backed by the MongoDB Go driver. The
// connection is established lazily.
func NewMongoSource(ctx context.Context, uri string) (Source, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetAppName(build.UserAgent())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}
	return &mongoSource{client: client}, nil
}

func (s *mongoSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.PrimaryPreferred())
}

func (s *mongoSource) CollStats(ctx context.Context, ns collstats.Namespace, opts StatsOptions) ([]collstats.Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$collStats", Value: bson.D{
			{Key: "latencyStats", Value: bson.D{{Key: "histograms", Value: opts.Histograms}}},
			{Key: "storageStats", Value: bson.D{{Key: "scale", Value: 1}}},
			{Key: "queryExecStats", Value: bson.D{}},
		}}},
	}

	var project bson.D
	if !opts.WiredTiger {
		project = append(project, bson.E{Key: "storageStats.wiredTiger", Value: 0})
	}
	if !opts.IndexDetails {
		project = append(project, bson.E{Key: "storageStats.indexDetails", Value: 0})
	}
	if len(project) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: project}})
	}

	cursor, err := s.client.Database(ns.Database).Collection(ns.Collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("cannot get $collStats cursor for %s: %w", ns, err)
	}
	defer cursor.Close(ctx)

	var res []collstats.Stats
	for cursor.Next(ctx) {
		stats, err := collstats.DecodeBSON(cursor.Current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ns, err)
		}
		res = append(res, stats)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cannot get $collStats for %s: %w", ns, err)
	}
	return res, nil
}

func (s *mongoSource) IndexStats(ctx context.Context, ns collstats.Namespace) ([]IndexAccess, error) {
	pipeline := mongo.Pipeline{{{Key: "$indexStats", Value: bson.D{}}}}

	cursor, err := s.client.Database(ns.Database).Collection(ns.Collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("cannot get $indexStats cursor for %s: %w", ns, err)
	}

	var res []IndexAccess
	if err := cursor.All(ctx, &res); err != nil {
		return nil, fmt.Errorf("cannot get $indexStats for %s: %w", ns, err)
	}
	return res, nil
}

func (s *mongoSource) ListCollections(ctx context.Context, exclude []string) ([]collstats.Namespace, error) {
	filter := bson.D{}
	if len(exclude) > 0 {
		filter = bson.D{{Key: "name", Value: bson.D{{Key: "$nin", Value: exclude}}}}
	}
	databases, err := s.client.ListDatabaseNames(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("cannot list databases: %w", err)
	}
	sort.Strings(databases)

	var res []collstats.Namespace
	for _, db := range databases {
		names, err := s.client.Database(db).ListCollectionNames(ctx, bson.D{{Key: "type", Value: "collection"}})
		if err != nil {
			return nil, fmt.Errorf("cannot list collections of %s: %w", db, err)
		}
		sort.Strings(names)

		for _, name := range names {
			if strings.HasPrefix(name, "system.") {
				continue
			}
			res = append(res, collstats.Namespace{Database: db, Collection: name})
		}
	}
	return res, nil
}

func (s *mongoSource) OplogWindow(ctx context.Context) (OplogWindow, error) {
	coll := s.client.Database(OplogNamespace.Database).Collection(OplogNamespace.Collection)

	first, err := oplogTimestamp(ctx, coll, 1)
	if err != nil {
		return OplogWindow{}, err
	}
	last, err := oplogTimestamp(ctx, coll, -1)
	if err != nil {
		return OplogWindow{}, err
	}
	return OplogWindow{First: first, Last: last}, nil
}

// oplogTimestamp returns the ts of the first oplog entry in $natural order,
// or of the last one when order is -1.
func oplogTimestamp(ctx context.Context, coll *mongo.Collection, order int) (time.Time, error) {
	var entry struct {
		TS primitive.Timestamp `bson:"ts"`
	}

	opts := options.FindOne().
		SetSort(bson.D{{Key: "$natural", Value: order}}).
		SetProjection(bson.D{{Key: "ts", Value: 1}})
	filter := bson.D{{Key: "ts", Value: bson.D{{Key: "$exists", Value: true}}}}

	err := coll.FindOne(ctx, filter, opts).Decode(&entry)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return time.Time{}, ErrEmptyOplog
	case err != nil:
		return time.Time{}, fmt.Errorf("cannot read oplog: %w", err)
	}
	return time.Unix(int64(entry.TS.T), 0).UTC(), nil
}

func (s *mongoSource) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

//go:build integration

package collstats_exporter //nolint:golint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/grafana/collstats-exporter/pkg/collstats"
	"github.com/grafana/collstats-exporter/pkg/integrations"
	config_util "github.com/prometheus/common/config"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// launchMongoDB starts a single member replica set and returns its URI.
func launchMongoDB(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	req := testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:6.0",
			Cmd:          []string{"--replSet", "rs0", "--bind_ip_all", "--oplogSize", "16"},
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(2 * time.Minute),
		},
	}

	c, err := testcontainers.GenericContainer(ctx, req)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Terminate(context.Background())
	})

	hostIP, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)
	uri := fmt.Sprintf("mongodb://%s:%s/?directConnection=true", hostIP, port.Port())

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	initiate := bson.D{{Key: "replSetInitiate", Value: bson.D{
		{Key: "_id", Value: "rs0"},
		{Key: "members", Value: bson.A{bson.D{{Key: "_id", Value: 0}, {Key: "host", Value: "localhost:27017"}}}},
	}}}
	require.NoError(t, client.Database("admin").RunCommand(ctx, initiate).Err())

	require.Eventually(t, func() bool {
		var res struct {
			IsWritablePrimary bool `bson:"isWritablePrimary"`
		}
		err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&res)
		return err == nil && res.IsWritablePrimary
	}, time.Minute, 500*time.Millisecond)

	orders := client.Database("shop").Collection("orders")
	for i := 0; i < 10; i++ {
		_, err := orders.InsertOne(ctx, bson.D{{Key: "item", Value: fmt.Sprintf("item-%d", i)}, {Key: "qty", Value: i}})
		require.NoError(t, err)
	}
	_, err = orders.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "item", Value: 1}}})
	require.NoError(t, err)

	return uri
}

func TestMongoSource(t *testing.T) {
	uri := launchMongoDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	source, err := NewMongoSource(ctx, uri)
	require.NoError(t, err)
	defer source.Close(context.Background())

	require.NoError(t, source.Ping(ctx))
	orders := collstats.MustParseNamespace("shop.orders")

	t.Run("CollStats", func(t *testing.T) {
		stats, err := source.CollStats(ctx, orders, StatsOptions{WiredTiger: true, Histograms: true})
		require.NoError(t, err)
		require.Len(t, stats, 1)

		s := stats[0]
		require.Equal(t, "shop.orders", s.Namespace)
		require.NoError(t, s.Validate())
		require.NotNil(t, s.StorageStats)
		require.Equal(t, int64(10), s.StorageStats.Count)
		require.Equal(t, int64(2), s.StorageStats.Nindexes)
		require.NotNil(t, s.StorageStats.WiredTiger)
		require.Nil(t, s.StorageStats.IndexDetails)

		_, err = StatsMetrics(s, StatsOptions{WiredTiger: true, Histograms: true})
		require.NoError(t, err)
	})

	t.Run("IndexStats", func(t *testing.T) {
		accesses, err := source.IndexStats(ctx, orders)
		require.NoError(t, err)

		var names []string
		for _, a := range accesses {
			names = append(names, a.Name)
		}
		require.ElementsMatch(t, []string{"_id_", "item_1"}, names)
	})

	t.Run("ListCollections", func(t *testing.T) {
		namespaces, err := source.ListCollections(ctx, DefaultConfig.ExcludeDatabases)
		require.NoError(t, err)
		require.Equal(t, []collstats.Namespace{orders}, namespaces)
	})

	t.Run("OplogWindow", func(t *testing.T) {
		window, err := source.OplogWindow(ctx)
		require.NoError(t, err)
		require.False(t, window.First.IsZero())
		require.False(t, window.Last.Before(window.First))

		stats, err := source.CollStats(ctx, OplogNamespace, StatsOptions{})
		require.NoError(t, err)
		require.Len(t, stats, 1)
		require.True(t, stats[0].StorageStats.Capped)
		require.NotNil(t, stats[0].StorageStats.MaxSize)
	})
}

func TestIntegration_MongoDB(t *testing.T) {
	uri := launchMongoDB(t)

	cfg := DefaultConfig
	cfg.URI = config_util.Secret(uri)
	cfg.DiscoverCollections = true
	cfg.IncludeIndexStats = true

	i, err := New(log.NewNopLogger(), &cfg)
	require.NoError(t, err)

	body := scrapeIntegration(t, i)
	require.Contains(t, body, "mongodb_collstats_up 1")
	require.Contains(t, body, `mongodb_collstats_storage_count{collection="orders",database="shop"} 10`)
	require.Contains(t, body, `mongodb_collstats_index_accesses_ops_total{collection="orders",database="shop",index="item_1"}`)
	require.Contains(t, body, "mongodb_oplog_time_diff_seconds")
}

func scrapeIntegration(t *testing.T, i integrations.Integration) string {
	t.Helper()

	h, err := i.MetricsHandler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

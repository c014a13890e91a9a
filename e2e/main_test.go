package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/elasticsearch"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/forgehq/search-core/escluster"
)

var (
	ctx context.Context

	// ES v9 (primary) resources
	esV9Container *elasticsearch.ElasticsearchContainer
	esV9Addr      string

	// ES v8 (legacy) resources - for multi-cluster tests
	esV8Container *elasticsearch.ElasticsearchContainer
	esV8Addr      string

	// Redis resources
	redisContainer *rediscontainer.RedisContainer
	redisAddr      string
	redisClient    *redis.Client

	// Registry with both clusters
	registry *escluster.Registry
)

func TestMain(m *testing.M) {
	ctx = context.Background()

	// Setup ES v9 (primary cluster for most tests)
	var err error
	esV9Container, err = elasticsearch.Run(ctx,
		"docker.elastic.co/elasticsearch/elasticsearch:9.0.0",
		elasticsearch.WithPassword("changeme"),
		testcontainers.WithEnv(map[string]string{
			"discovery.type":         "single-node",
			"xpack.security.enabled": "false",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForLog("started").
				WithStartupTimeout(2*time.Minute).
				WithPollInterval(1*time.Second),
		),
	)
	if err != nil {
		panic(err)
	}

	esV9Addr, err = esV9Container.Endpoint(ctx, "http")
	if err != nil {
		panic(err)
	}

	// Setup ES v8 (for multi-cluster tests)
	esV8Container, err = elasticsearch.Run(ctx,
		"docker.elastic.co/elasticsearch/elasticsearch:8.11.0",
		elasticsearch.WithPassword("changeme"),
		testcontainers.WithEnv(map[string]string{
			"discovery.type":         "single-node",
			"xpack.security.enabled": "false",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForLog("started").
				WithStartupTimeout(2*time.Minute).
				WithPollInterval(1*time.Second),
		),
	)
	if err != nil {
		panic(err)
	}

	esV8Addr, err = esV8Container.Endpoint(ctx, "http")
	if err != nil {
		panic(err)
	}

	// Setup Redis
	redisContainer, err = rediscontainer.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second).
				WithPollInterval(500*time.Millisecond),
		),
	)
	if err != nil {
		panic(err)
	}

	redisAddr, err = redisContainer.Endpoint(ctx, "")
	if err != nil {
		panic(err)
	}

	options, err := redis.ParseURL("redis://" + redisAddr)
	if err != nil {
		panic(err)
	}
	redisClient = redis.NewClient(options)

	// Create multi-cluster registry
	config := &escluster.Config{
		DefaultCluster: "primary",
		Clusters: map[string]escluster.ClusterConfig{
			"primary": {
				Name:      "primary",
				Version:   9,
				Addresses: []string{esV9Addr},
				Username:  "elastic",
				Password:  "changeme",
			},
			"legacy": {
				Name:      "legacy",
				Version:   8,
				Addresses: []string{esV8Addr},
				Username:  "elastic",
				Password:  "changeme",
			},
		},
	}

	registry, err = escluster.NewRegistryFromConfig(config)
	if err != nil {
		panic(err)
	}

	// Run tests
	code := m.Run()

	// Cleanup
	if redisClient != nil {
		_ = redisClient.FlushAll(ctx).Err()
		_ = redisClient.Close()
	}
	if redisContainer != nil {
		_ = redisContainer.Terminate(ctx)
	}
	if esV9Container != nil {
		_ = esV9Container.Terminate(ctx)
	}
	if esV8Container != nil {
		_ = esV8Container.Terminate(ctx)
	}

	os.Exit(code)
}

// testDeps contains per-test dependencies
type testDeps struct {
	Client   *escluster.Client
	Registry *escluster.Registry
	Redis    *redis.Client
}

// newTestDeps creates test dependencies for a specific cluster
func newTestDeps(t *testing.T, clusterName string) *testDeps {
	t.Helper()

	client, err := registry.GetTypedClient(clusterName)
	if err != nil {
		t.Fatalf("failed to get typed client: %v", err)
	}

	return &testDeps{
		Client:   client,
		Registry: registry,
		Redis:    redisClient,
	}
}

// issueMapping covers the fields the issue query builder filters on.
func issueMapping() map[string]any {
	return map[string]any{
		"properties": map[string]any{
			"type":         map[string]any{"type": "keyword"},
			"iid":          map[string]any{"type": "long"},
			"title":        map[string]any{"type": "text"},
			"description":  map[string]any{"type": "text"},
			"project_id":   map[string]any{"type": "long"},
			"confidential": map[string]any{"type": "boolean"},
			"hidden":       map[string]any{"type": "boolean"},
			"archived":     map[string]any{"type": "boolean"},
			"author_id":    map[string]any{"type": "long"},
			"assignee_id":  map[string]any{"type": "long"},
			"label_ids":    map[string]any{"type": "long"},
			"state":        map[string]any{"type": "keyword"},
			"created_at":   map[string]any{"type": "date"},
			"updated_at":   map[string]any{"type": "date"},
		},
	}
}

// createTestIndex creates an index with the issue mapping and optional
// aliases, and schedules cleanup.
func (td *testDeps) createTestIndex(t *testing.T, indexName string, aliases map[string]any) {
	t.Helper()

	exists, err := td.Client.IndexExists(ctx, indexName)
	if err != nil {
		t.Fatalf("failed to check index existence: %v", err)
	}

	if exists {
		return
	}

	body := map[string]any{
		"mappings": issueMapping(),
	}
	if aliases != nil {
		body["aliases"] = aliases
	}
	bodyBytes, _ := json.Marshal(body)

	err = td.Client.CreateIndex(ctx, &escluster.CreateIndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(bodyBytes),
	})
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}

	// Cleanup on test completion
	t.Cleanup(func() {
		_ = td.Client.DeleteIndex(ctx, indexName)
	})
}

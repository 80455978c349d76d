//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/openrelief/newstracker/internal/api"
	"github.com/openrelief/newstracker/internal/composer"
	"github.com/openrelief/newstracker/internal/config"
	"github.com/openrelief/newstracker/internal/content"
	"github.com/openrelief/newstracker/internal/database"
	"github.com/openrelief/newstracker/internal/indexer"
	"github.com/openrelief/newstracker/internal/llm/llmtest"
	"github.com/openrelief/newstracker/internal/memory"
	"github.com/openrelief/newstracker/internal/middleware"
	"github.com/openrelief/newstracker/internal/tracker"
)

const adminKey = "integration-admin-key"

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server

	Indexer   *indexer.Indexer
	Primary   *llmtest.Provider
	Secondary *llmtest.Provider
	Embedder  *llmtest.Embedder
}

var (
	testEnv  *TestEnv
	seedSeq  atomic.Int64
	baseTime = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
)

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:0.8.1-pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "newstracker_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/newstracker_test?sslmode=disable", pgHost, pgPort.Port())

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}
	m.Close()

	pool, err := database.NewPostgresPool(ctx, config.DBConfig{
		Host: pgHost, Port: pgPort.Int(),
		User: "test", Password: "test", Name: "newstracker_test",
		SSLMode: "disable", MaxConns: 5,
	})
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	// The posts and comments tables belong to the community platform; the
	// tracker only reads them, so the schema is created here, not in the
	// service migrations.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			location TEXT,
			author_location TEXT,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			location TEXT,
			author_location TEXT,
			created_at TIMESTAMPTZ NOT NULL
		);`)
	if err != nil {
		t.Fatalf("creating platform tables: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	env := &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Primary:     &llmtest.Provider{ProviderName: "primary"},
		Secondary:   &llmtest.Provider{ProviderName: "secondary"},
		Embedder:    llmtest.NewEmbedder(),
	}

	contentRepo := content.NewPostgresRepository(pool)
	memoryRepo := memory.NewPostgresRepository(pool)
	queryRepo := tracker.NewPostgresRepository(pool)

	retriever := memory.NewRetriever(memoryRepo, env.Embedder)
	env.Indexer = indexer.New(contentRepo, memoryRepo, &llmtest.Summarizer{}, env.Embedder, nil, 50, 500)

	comp := composer.New(retriever, nil, env.Primary, env.Secondary,
		composer.NewCooldown(time.Minute), queryRepo, nil, 5, 2*time.Second)

	handlers := api.NewHandlers(comp, retriever, queryRepo, env.Indexer)
	limiter := middleware.NewRateLimiter(redisClient, 1000, 60)

	router := api.NewRouter(pool, nil, api.RouterConfig{CORSAllowedOrigins: []string{"*"}},
		handlers.HandlerSet(limiter.Middleware, middleware.AdminKey(adminKey)))

	env.Server = httptest.NewServer(router)
	t.Cleanup(env.Server.Close)

	testEnv = env
	return env
}

func uniqueID() int64 {
	return seedSeq.Add(1)
}

// SeedPost inserts a platform post the indexer can pick up. Each call gets
// a later created_at so insertion order matches chronological order.
func SeedPost(t *testing.T, env *TestEnv, content, location string) string {
	t.Helper()
	id := fmt.Sprintf("post-%d", uniqueID())
	createdAt := baseTime.Add(time.Duration(seedSeq.Load()) * time.Minute)
	_, err := env.Pool.Exec(context.Background(),
		`INSERT INTO posts (id, content, location, author_location, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULL, $4)`,
		id, content, location, createdAt)
	if err != nil {
		t.Fatalf("seeding post: %v", err)
	}
	return id
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, userID string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}
	return resp
}

// Reindex triggers the admin reprocess pass and waits for the given source
// id to land in memory_records. The pass runs in the background, so callers
// cannot query right after the 202.
func Reindex(t *testing.T, env *TestEnv, sourceID string) {
	t.Helper()

	resp := DoAdminRequest(t, env, "POST", "/api/v1/admin/reprocess", adminKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("reprocess returned %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var exists bool
		err := env.Pool.QueryRow(context.Background(),
			`SELECT EXISTS (SELECT 1 FROM memory_records WHERE source_id = $1)`,
			sourceID).Scan(&exists)
		if err == nil && exists {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("source %s was not indexed before the deadline", sourceID)
}

func DoAdminRequest(t *testing.T, env *TestEnv, method, path, key string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, env.Server.URL+path, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("X-Admin-Key", key)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return result
}

package connector

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
databases:
  - name: blog
    dialect: postgres
    dsn: postgres://localhost/blog
    max_open_conns: 5
    slow_threshold: 250ms
    schema: tenant
  - name: archive
    dialect: sqlite
    dsn: file:archive.db
    debug: true
reader:
  concurrency: 3
cache:
  ttl: 1m
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(sampleConfig))
	require.NoError(t, err)
	require.Len(t, cfg.Databases, 2)
	blog, ok := cfg.Database("blog")
	require.True(t, ok)
	assert.Equal(t, DatabaseConfig{
		Name:          "blog",
		Dialect:       "postgres",
		DSN:           "postgres://localhost/blog",
		MaxOpenConns:  5,
		SlowThreshold: 250 * time.Millisecond,
		Schema:        "tenant",
	}, blog)
	archive, ok := cfg.Database("archive")
	require.True(t, ok)
	assert.True(t, archive.Debug)
	assert.Equal(t, 3, cfg.Reader.Concurrency)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	_, ok = cfg.Database("other")
	assert.False(t, ok)

	cfg, err = ParseConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, cfg.Databases)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"UnknownField", "databases:\n  - name: a\n    host: x\n", "connector: decode config"},
		{"MissingName", "databases:\n  - dialect: sqlite\n    dsn: x\n", "databases[0]: missing name"},
		{"Duplicate", "databases:\n  - {name: a, dialect: sqlite, dsn: x}\n  - {name: a, dialect: sqlite, dsn: y}\n", `duplicate name "a"`},
		{"Dialect", "databases:\n  - {name: a, dialect: oracle, dsn: x}\n", `unsupported dialect "oracle"`},
		{"DSN", "databases:\n  - {name: a, dialect: mysql}\n", "missing dsn"},
		{"Schema", "databases:\n  - {name: a, dialect: sqlite, dsn: x, schema: s}\n", "schema requires the postgres dialect"},
		{"Concurrency", "reader: {concurrency: -1}\n", "negative reader concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Databases, 2)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWatchConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "connector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	var threshold atomic.Int64
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := WatchConfig(ctx, path, logger, func(cfg *Config) {
		if db, ok := cfg.Database("blog"); ok {
			threshold.Store(int64(db.SlowThreshold))
		}
	})
	require.NoError(t, err)

	// Invalid content is ignored.
	require.NoError(t, os.WriteFile(path, []byte("databases: [{name: blog}]"), 0o600))
	updated := strings.Replace(sampleConfig, "250ms", "2s", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	require.Eventually(t, func() bool {
		return time.Duration(threshold.Load()) == 2*time.Second
	}, 5*time.Second, 10*time.Millisecond)
}

func TestConnectorWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := openBlog(t)
	path := filepath.Join(t.TempDir(), "connector.yaml")
	require.NoError(t, os.WriteFile(path, []byte("databases: []\n"), 0o600))
	require.NoError(t, c.Watch(ctx, path))

	db, err := c.Database("blog")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("databases:\n  - {name: blog, dialect: sqlite, dsn: x, slow_threshold: 3s}\n"), 0o600))
	require.Eventually(t, func() bool {
		return db.stats.SlowThreshold() == 3*time.Second
	}, 5*time.Second, 10*time.Millisecond)
}

package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/syssam/veloxq/dialect"
)

// Config is the configuration of a connector, usually loaded from a YAML
// file:
//
//	databases:
//	  - name: blog
//	    dialect: postgres
//	    dsn: postgres://localhost/blog?sslmode=disable
//	    max_open_conns: 10
//	    slow_threshold: 200ms
//	reader:
//	  concurrency: 4
//	cache:
//	  ttl: 30s
type Config struct {
	Databases []DatabaseConfig `yaml:"databases"`
	Reader    ReaderConfig     `yaml:"reader"`
	Cache     CacheConfig      `yaml:"cache"`
}

// DatabaseConfig configures one named database.
type DatabaseConfig struct {
	Name          string        `yaml:"name"`
	Dialect       string        `yaml:"dialect"`
	DSN           string        `yaml:"dsn"`
	MaxOpenConns  int           `yaml:"max_open_conns"`
	Debug         bool          `yaml:"debug"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	// Schema is the Postgres schema holding the tables. Statements run
	// with it as search_path and tables are provisioned in it.
	Schema string `yaml:"schema"`
}

// ReaderConfig configures non-transactional reads.
type ReaderConfig struct {
	// Concurrency bounds the nested relation reads run in parallel. Zero
	// or one reads them sequentially.
	Concurrency int `yaml:"concurrency"`
}

// CacheConfig configures the read cache.
type CacheConfig struct {
	// TTL of cached reads. Zero disables the cache.
	TTL time.Duration `yaml:"ttl"`
}

// ParseConfig decodes and validates a YAML configuration.
func ParseConfig(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("connector: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("connector: %w", err)
	}
	defer f.Close()
	return ParseConfig(f)
}

// Validate checks that every database has a unique name and a supported
// dialect.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Databases))
	for i, db := range c.Databases {
		switch {
		case db.Name == "":
			return fmt.Errorf("connector: databases[%d]: missing name", i)
		case seen[db.Name]:
			return fmt.Errorf("connector: databases[%d]: duplicate name %q", i, db.Name)
		case db.DSN == "":
			return fmt.Errorf("connector: database %q: missing dsn", db.Name)
		case db.SlowThreshold < 0:
			return fmt.Errorf("connector: database %q: negative slow_threshold", db.Name)
		}
		switch db.Dialect {
		case dialect.Postgres, dialect.MySQL, dialect.SQLite:
		default:
			return fmt.Errorf("connector: database %q: unsupported dialect %q", db.Name, db.Dialect)
		}
		if db.Schema != "" && db.Dialect != dialect.Postgres {
			return fmt.Errorf("connector: database %q: schema requires the postgres dialect", db.Name)
		}
		seen[db.Name] = true
	}
	if c.Reader.Concurrency < 0 {
		return fmt.Errorf("connector: negative reader concurrency")
	}
	return nil
}

// Database returns the configuration of the named database.
func (c *Config) Database(name string) (DatabaseConfig, bool) {
	for _, db := range c.Databases {
		if db.Name == name {
			return db, true
		}
	}
	return DatabaseConfig{}, false
}

// WatchConfig calls onChange with the new configuration every time the file
// at path is written, until ctx is done. Invalid configurations are logged
// and ignored. The directory is watched so that editors replacing the file
// are followed.
func WatchConfig(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("connector: watch config: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return fmt.Errorf("connector: watch config: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("connector: watch config: %w", err)
	}
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(abs)
				if err != nil {
					logger.Warn("ignoring config change", "path", abs, "error", err)
					continue
				}
				logger.Info("config reloaded", "path", abs)
				onChange(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "path", abs, "error", err)
			}
		}
	}()
	return nil
}

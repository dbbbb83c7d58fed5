// Package config loads objsync configuration from a CUE file. The file is
// unified with the embedded #Config schema, which validates it and fills
// defaults, then decoded into Config.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// Transport kinds.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
	KindBadger = "badger"
	KindRedis  = "redis"
	KindServer = "server"
	KindMinio  = "minio"
)

// Config is the decoded configuration.
type Config struct {
	Store      string      `json:"store"`
	Document   string      `json:"document"`
	Stream     string      `json:"stream"`
	LogLevel   string      `json:"log_level"`
	LogFormat  string      `json:"log_format"`
	Transfer   Transfer    `json:"transfer"`
	Server     Server      `json:"server"`
	Transports []Transport `json:"transports"`
}

// Transfer tunes the transfer stage.
type Transfer struct {
	ChunkSize       int    `json:"chunk_size"`
	ContinueOnError bool   `json:"continue_on_error"`
	Cache           string `json:"cache,omitempty"`
}

// Server configures `objsync serve`.
type Server struct {
	Listen string `json:"listen"`
}

// Transport describes one object transport. Which fields apply depends on
// Kind.
type Transport struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Path      string `json:"path,omitempty"`
	InMemory  bool   `json:"in_memory,omitempty"`
	URL       string `json:"url,omitempty"`
	Addr      string `json:"addr,omitempty"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db,omitempty"`
	TTL       string `json:"ttl,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Secure    bool   `json:"secure,omitempty"`
}

// TTLDuration parses TTL. An empty TTL is zero.
func (t Transport) TTLDuration() (time.Duration, error) {
	if t.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(t.TTL)
	if err != nil {
		return 0, fmt.Errorf("transport %s: ttl: %w", t.Name, err)
	}
	return d, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Load reads and validates a CUE config file.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, src)
}

// Parse validates src against #Config and decodes it. A nil src yields
// the defaults.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def
	if src != nil {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		value = def.Unify(user)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", filename, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &cfg, nil
}

// validate checks what the schema cannot express.
func (c *Config) validate() error {
	seen := make(map[string]struct{}, len(c.Transports))
	for _, t := range c.Transports {
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("duplicate transport name %q", t.Name)
		}
		seen[t.Name] = struct{}{}
		if t.Kind == KindBadger && !t.InMemory && t.Path == "" {
			return fmt.Errorf("transport %s: badger needs a path unless in_memory is set", t.Name)
		}
		if _, err := t.TTLDuration(); err != nil {
			return err
		}
	}
	return nil
}

// Transport returns the transport named name.
func (c *Config) Transport(name string) (Transport, bool) {
	for _, t := range c.Transports {
		if t.Name == name {
			return t, true
		}
	}
	return Transport{}, false
}

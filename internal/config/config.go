// Package config loads the rewind configuration file and applies REWIND_*
// environment overrides on top of it.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Journal backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the runtime configuration of the rewind CLI.
type Config struct {
	Engine          string        `mapstructure:"engine"`
	MaxHistory      int           `mapstructure:"max_history"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	SyncApply       bool          `mapstructure:"sync_apply"`

	Log     LogConfig     `mapstructure:"log"`
	Journal JournalConfig `mapstructure:"journal"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Policy  PolicyConfig  `mapstructure:"policy"`
}

// LogConfig selects the level and format of the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// JournalConfig selects where session transcripts are kept.
type JournalConfig struct {
	Backend       string        `mapstructure:"backend"`
	Path          string        `mapstructure:"path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`

	// EncryptionKey is a base64 encoded 32 byte AES key. When set, transcript
	// entries are sealed before they reach the backend.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
	// Redact lists regular expressions masked out of recorded entries.
	Redact []string `mapstructure:"redact"`
}

// Keys decodes the active and fallback encryption keys.
func (j JournalConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if j.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(j.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("journal.encryption_key: %w", err)
	}
	for i, k := range j.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("journal.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// PolicyConfig lists regular expressions that submitted units must not match.
type PolicyConfig struct {
	Deny []string `mapstructure:"deny"`
}

// envOverrides maps environment variables to configuration keys.
var envOverrides = map[string]string{
	"REWIND_ENGINE":           "engine",
	"REWIND_MAX_HISTORY":      "max_history",
	"REWIND_RESPONSE_TIMEOUT": "response_timeout",
	"REWIND_SYNC_APPLY":       "sync_apply",
	"REWIND_LOG_LEVEL":        "log.level",
	"REWIND_LOG_FORMAT":       "log.format",
	"REWIND_JOURNAL_BACKEND":  "journal.backend",
	"REWIND_JOURNAL_PATH":     "journal.path",
	"REWIND_REDIS_ADDR":       "journal.redis_addr",
	"REWIND_REDIS_PASSWORD":   "journal.redis_password",
	"REWIND_REDIS_DB":         "journal.redis_db",
	"REWIND_JOURNAL_TTL":      "journal.ttl",
	"REWIND_JOURNAL_KEY":      "journal.encryption_key",
	"REWIND_HTTP_ADDR":        "http.addr",
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Engine:          "lua",
		ResponseTimeout: 30 * time.Second,
		SyncApply:       true,
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Journal: JournalConfig{
			Backend: BackendMemory,
			Path:    filepath.Join(".rewind", "journal"),
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads path (YAML, or JSON by extension) over the defaults, applies the
// environment overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := decode(raw, cfg); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	}

	if err := decode(fromEnv(os.LookupEnv), cfg); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	raw := make(map[string]any)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}
	return raw, nil
}

// fromEnv builds a nested key map out of the REWIND_* variables that are set.
func fromEnv(lookup func(string) (string, bool)) map[string]any {
	raw := make(map[string]any)
	for env, key := range envOverrides {
		value, ok := lookup(env)
		if !ok {
			continue
		}
		section, field, nested := strings.Cut(key, ".")
		if !nested {
			raw[key] = value
			continue
		}
		sub, _ := raw[section].(map[string]any)
		if sub == nil {
			sub = make(map[string]any)
			raw[section] = sub
		}
		sub[field] = value
	}
	if deny, ok := lookup("REWIND_POLICY_DENY"); ok {
		raw["policy"] = map[string]any{"deny": strings.Split(deny, ",")}
	}
	return raw
}

func decode(raw map[string]any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine == "" {
		errs = append(errs, errors.New("engine must not be empty"))
	}
	if c.MaxHistory < 0 {
		errs = append(errs, fmt.Errorf("max_history must be >= 0, got %d", c.MaxHistory))
	}
	if c.ResponseTimeout < 0 {
		errs = append(errs, fmt.Errorf("response_timeout must be >= 0, got %s", c.ResponseTimeout))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	switch c.Journal.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Journal.Path == "" {
			errs = append(errs, errors.New("journal.path is required for the file backend"))
		}
	case BackendRedis:
		if c.Journal.RedisAddr == "" {
			errs = append(errs, errors.New("journal.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("journal.backend %q is not one of memory, file, redis", c.Journal.Backend))
	}
	if c.Journal.TTL < 0 {
		errs = append(errs, fmt.Errorf("journal.ttl must be >= 0, got %s", c.Journal.TTL))
	}

	if _, _, err := c.Journal.Keys(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.Journal.Redact {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("journal.redact pattern %q: %w", p, err))
		}
	}

	for _, p := range c.Policy.Deny {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("policy.deny pattern %q: %w", p, err))
		}
	}

	return errors.Join(errs...)
}

package config

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.SyncApply)
	assert.Equal(t, BackendMemory, cfg.Journal.Backend)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "rewind.yaml", `
engine: lua
max_history: 5
response_timeout: 2s
sync_apply: false
log:
  level: debug
  format: json
journal:
  backend: redis
  redis_addr: localhost:6379
  redis_db: 2
  ttl: 1h
http:
  addr: 127.0.0.1:9000
policy:
  deny:
    - 'os\.execute'
    - 'io\.popen'
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxHistory)
	assert.Equal(t, 2*time.Second, cfg.ResponseTimeout)
	assert.False(t, cfg.SyncApply)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, BackendRedis, cfg.Journal.Backend)
	assert.Equal(t, 2, cfg.Journal.RedisDB)
	assert.Equal(t, time.Hour, cfg.Journal.TTL)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, []string{`os\.execute`, `io\.popen`}, cfg.Policy.Deny)

	// Untouched keys keep their defaults
	assert.Equal(t, filepath.Join(".rewind", "journal"), cfg.Journal.Path)
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "rewind.json", `{
		"max_history": 3,
		"response_timeout": "500ms",
		"journal": {"backend": "file", "path": "/tmp/journal"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxHistory)
	assert.Equal(t, 500*time.Millisecond, cfg.ResponseTimeout)
	assert.Equal(t, BackendFile, cfg.Journal.Backend)
	assert.Equal(t, "/tmp/journal", cfg.Journal.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "rewind.yaml", "max_history: 5\nlog:\n  level: info\n")
	t.Setenv("REWIND_MAX_HISTORY", "9")
	t.Setenv("REWIND_SYNC_APPLY", "false")
	t.Setenv("REWIND_RESPONSE_TIMEOUT", "1m")
	t.Setenv("REWIND_LOG_FORMAT", "json")
	t.Setenv("REWIND_POLICY_DENY", `os\.exit,debug\.`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.MaxHistory)
	assert.False(t, cfg.SyncApply)
	assert.Equal(t, time.Minute, cfg.ResponseTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{`os\.exit`, `debug\.`}, cfg.Policy.Deny)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"Unknown Key", "a.yaml", "colour: blue\n", "colour"},
		{"Bad Duration", "b.yaml", "response_timeout: soon\n", "response_timeout"},
		{"Negative History", "c.yaml", "max_history: -1\n", "max_history must be >= 0"},
		{"Bad Backend", "d.yaml", "journal:\n  backend: s3\n", "journal.backend"},
		{"Redis Without Addr", "e.yaml", "journal:\n  backend: redis\n", "journal.redis_addr is required"},
		{"Bad Level", "f.yaml", "log:\n  level: loud\n", "log.level"},
		{"Bad Pattern", "g.yaml", "policy:\n  deny: ['(']\n", "policy.deny"},
		{"Malformed JSON", "h.json", "{", "failed to parse"},
		{"Short Key", "i.yaml", "journal:\n  encryption_key: c2hvcnQ=\n", "journal.encryption_key: must decode to 32 bytes"},
		{"Bad Redact", "j.yaml", "journal:\n  redact: ['[']\n", "journal.redact"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJournalConfig_Keys(t *testing.T) {
	active := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))
	old := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{2}, 32))

	key, fallback, err := JournalConfig{}.Keys()
	require.NoError(t, err)
	assert.Nil(t, key)
	assert.Nil(t, fallback)

	t.Setenv("REWIND_JOURNAL_KEY", active)
	path := writeConfig(t, "k.yaml", "journal:\n  fallback_keys: ['"+old+"']\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	key, fallback, err = cfg.Journal.Keys()
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{1}, 32), key)
	require.Len(t, fallback, 1)
	assert.Equal(t, bytes.Repeat([]byte{2}, 32), fallback[0])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromEnv_Nesting(t *testing.T) {
	env := map[string]string{
		"REWIND_ENGINE":     "lua",
		"REWIND_REDIS_ADDR": "h:1",
		"REWIND_REDIS_DB":   "3",
	}
	raw := fromEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, map[string]any{
		"engine": "lua",
		"journal": map[string]any{
			"redis_addr": "h:1",
			"redis_db":   "3",
		},
	}, raw)
}

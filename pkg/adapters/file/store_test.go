package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/rewind/internal/testutils"
	"github.com/aretw0/rewind/pkg/adapters/file"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunJournalContract(t, file.New(t.TempDir()))
}

func TestFileStore_NoTempLeftovers(t *testing.T) {
	dir := testutils.SetupJournalDir(t)
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", domain.Entry{Seq: 1, Payload: "x = 1"}))
	require.NoError(t, store.Append(ctx, "s1", domain.Entry{Seq: 2, Payload: "x = 2"}))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "s1.json", files[0].Name())
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{invalid"), 0644))

	_, err := file.New(dir).List(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestFileStore_SessionsMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))
	sessions, err := store.Sessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

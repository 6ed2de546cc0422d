package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupJournalDir creates an empty journal directory under a temporary dir.
// It returns the absolute path and fails the test immediately on error.
func SetupJournalDir(t *testing.T) string {
	t.Helper()

	absPath, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	dir := filepath.Join(absPath, "journal")
	require.NoError(t, os.MkdirAll(dir, 0o755), "Failed to create journal dir")
	return dir
}

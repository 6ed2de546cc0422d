package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunJournalContract is a reusable test suite that verifies if an adapter
// complies with Journal.
func RunJournalContract(t *testing.T, journal Journal) {
	t.Helper()

	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	entry := func(seq int, payload string) domain.Entry {
		return domain.Entry{
			Seq:      seq,
			Payload:  payload,
			Snapshot: 1000 + seq,
			At:       time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Append and List", func(t *testing.T) {
		defer func() { _ = journal.Delete(ctx, sessionID) }()

		require.NoError(t, journal.Append(ctx, sessionID, entry(1, "x = 1")))
		failed := entry(2, "y = z + 1")
		failed.Failure = "attempt to perform arithmetic on a nil value"
		require.NoError(t, journal.Append(ctx, sessionID, failed))

		entries, err := journal.List(ctx, sessionID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "x = 1", entries[0].Payload)
		assert.Equal(t, 1001, entries[0].Snapshot)
		assert.Equal(t, "y = z + 1", entries[1].Payload)
		assert.True(t, entries[1].Failed())
	})

	t.Run("Pop is LIFO", func(t *testing.T) {
		defer func() { _ = journal.Delete(ctx, sessionID) }()

		require.NoError(t, journal.Append(ctx, sessionID, entry(1, "a = 1")))
		require.NoError(t, journal.Append(ctx, sessionID, entry(2, "a = 2")))

		last, err := journal.Pop(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "a = 2", last.Payload)

		first, err := journal.Pop(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "a = 1", first.Payload)

		_, err = journal.Pop(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrEmptyHistory)
	})

	t.Run("Shift is FIFO", func(t *testing.T) {
		defer func() { _ = journal.Delete(ctx, sessionID) }()

		require.NoError(t, journal.Append(ctx, sessionID, entry(1, "b = 1")))
		require.NoError(t, journal.Append(ctx, sessionID, entry(2, "b = 2")))
		require.NoError(t, journal.Append(ctx, sessionID, entry(3, "b = 3")))

		oldest, err := journal.Shift(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "b = 1", oldest.Payload)
		assert.Equal(t, 1001, oldest.Snapshot)

		entries, err := journal.List(ctx, sessionID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 2, entries[0].Seq)
		assert.Equal(t, 3, entries[1].Seq)

		last, err := journal.Pop(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "b = 3", last.Payload)

		_, err = journal.Shift(ctx, sessionID)
		require.NoError(t, err)
		_, err = journal.Shift(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrEmptyHistory)

		_, err = journal.List(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("List Non-Existent", func(t *testing.T) {
		_, err := journal.List(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, journal.Append(ctx, sessionID, entry(1, "x = 1")))

		err := journal.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = journal.List(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "List after Delete should return ErrSessionNotFound")
	})

	t.Run("Sessions", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, journal.Append(ctx, id1, entry(1, "x = 1")))
		require.NoError(t, journal.Append(ctx, id2, entry(1, "y = 1")))

		defer func() {
			_ = journal.Delete(ctx, id1)
			_ = journal.Delete(ctx, id2)
		}()

		sessions, err := journal.Sessions(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/rewind/pkg/adapters/memory"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunJournalContract(t, memory.NewStore())
}

func TestMemoryStore_ListIsACopy(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Append(ctx, "s1", domain.Entry{Seq: 1, Payload: "x = 1"}))

	entries, err := store.List(ctx, "s1")
	require.NoError(t, err)
	entries[0].Payload = "tampered"

	again, err := store.List(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "x = 1", again[0].Payload)
}

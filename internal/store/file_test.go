package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/relaybot/internal/routing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "routes.json")
	s := NewFileStore(path)

	src, err := routing.ParseRef("@newsfeed")
	require.NoError(t, err)
	tgt, err := routing.ParseRef("@mirrorA")
	require.NoError(t, err)

	table := routing.Table{
		"42": {Source: &src, Targets: []routing.ChannelRef{tgt}},
	}
	require.NoError(t, s.Save(ctx, table))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, got, "42")
	require.NotNil(t, got["42"].Source)
	assert.Equal(t, "@newsfeed", got["42"].Source.String())
	require.Len(t, got["42"].Targets, 1)
	assert.Equal(t, "@mirrorA", got["42"].Targets[0].String())
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStoreCorruptBlobIsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "routes.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewFileStore(path)
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	// next save self-heals the store
	require.NoError(t, s.Save(ctx, routing.Table{"1": {}}))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, got, "1")
}

func TestFileStoreUpdateCreatesEntry(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "routes.json"))

	ref, err := routing.ParseRef("@chan")
	require.NoError(t, err)
	entry, err := s.Update(ctx, "7", func(e routing.Entry) routing.Entry {
		return routing.SetSource(e, ref)
	})
	require.NoError(t, err)
	require.NotNil(t, entry.Source)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, got, "7")
	assert.Equal(t, "@chan", got["7"].Source.String())
}

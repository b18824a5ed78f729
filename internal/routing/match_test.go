package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchDualRepresentation(t *testing.T) {
	handle := mustRef(t, "@chan")
	numeric := mustRef(t, "-100555")
	table := Table{
		"1": {Source: &handle},
		"2": {Source: &numeric},
		"3": {}, // no source, never matches
	}

	byName := Match(table, -999, "chan")
	require.Len(t, byName, 1)
	assert.Equal(t, "1", byName[0].UserID)

	byID := Match(table, -100555, "")
	require.Len(t, byID, 1)
	assert.Equal(t, "2", byID[0].UserID)

	assert.Empty(t, Match(table, 42, "elsewhere"))
}

func TestMatchMultipleUsersShareSource(t *testing.T) {
	src := mustRef(t, "@shared")
	table := Table{
		"9": {Source: &src},
		"2": {Source: &src},
		"5": {Source: &src},
	}
	got := Match(table, 0, "shared")
	require.Len(t, got, 3)
	// deterministic order by user id
	assert.Equal(t, "2", got[0].UserID)
	assert.Equal(t, "5", got[1].UserID)
	assert.Equal(t, "9", got[2].UserID)
}

func TestMatchStripsIncomingAt(t *testing.T) {
	src := mustRef(t, "@chan")
	table := Table{"1": {Source: &src}}
	assert.Len(t, Match(table, 0, "@chan"), 1)
}

package routing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRef(t *testing.T, raw string) ChannelRef {
	t.Helper()
	ref, err := ParseRef(raw)
	require.NoError(t, err)
	return ref
}

func TestParseRef(t *testing.T) {
	ref := mustRef(t, " @newsfeed ")
	assert.Equal(t, RefHandle, ref.Kind)
	assert.Equal(t, "newsfeed", ref.Handle)
	assert.Equal(t, "@newsfeed", ref.String())

	ref = mustRef(t, "-1001234567890")
	assert.Equal(t, RefNumeric, ref.Kind)
	assert.Equal(t, int64(-1001234567890), ref.ID)
	assert.Equal(t, "-1001234567890", ref.Recipient())

	// a bare name without @ is still a handle
	ref = mustRef(t, "mirror")
	assert.Equal(t, RefHandle, ref.Kind)

	_, err := ParseRef("   ")
	assert.ErrorIs(t, err, ErrEmptyRef)
	_, err = ParseRef("@")
	assert.ErrorIs(t, err, ErrEmptyRef)
}

func TestAddTargetIdempotent(t *testing.T) {
	e := Entry{}
	e = AddTarget(e, mustRef(t, "@mirrorA"))
	e = AddTarget(e, mustRef(t, "@mirrorA"))
	require.Len(t, e.Targets, 1)

	e = AddTarget(e, mustRef(t, "@mirrorB"))
	assert.Equal(t, []string{"@mirrorA", "@mirrorB"}, refStrings(e.Targets))
}

func TestRemoveTargetAbsentIsNoop(t *testing.T) {
	e := AddTarget(Entry{}, mustRef(t, "@mirrorA"))
	before := refStrings(e.Targets)
	e = RemoveTarget(e, mustRef(t, "@missing"))
	assert.Equal(t, before, refStrings(e.Targets))

	e = RemoveTarget(e, mustRef(t, "@mirrorA"))
	assert.Empty(t, e.Targets)
}

func TestSetSourceReplacesUnconditionally(t *testing.T) {
	e := SetSource(Entry{}, mustRef(t, "@first"))
	e = SetSource(e, mustRef(t, "@second"))
	require.NotNil(t, e.Source)
	assert.Equal(t, "@second", e.Source.String())

	e = ClearSource(e)
	assert.Nil(t, e.Source)
}

func TestEntryJSONBackwardReadable(t *testing.T) {
	// missing fields and unknown keys must not break loading
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(`{"legacy_field": 1}`), &e))
	assert.Nil(t, e.Source)
	assert.Empty(t, e.Targets)

	require.NoError(t, json.Unmarshal([]byte(`{"source": "@chan", "targets": ["-100200", "@m"]}`), &e))
	require.NotNil(t, e.Source)
	assert.Equal(t, "@chan", e.Source.String())
	assert.Equal(t, []string{"-100200", "@m"}, refStrings(e.Targets))

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source": "@chan", "targets": ["-100200", "@m"]}`, string(out))

	// null source round-trips as an explicit null
	out, err = json.Marshal(Entry{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"source": null, "targets": []}`, string(out))
}

func refStrings(refs []ChannelRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.String())
	}
	return out
}

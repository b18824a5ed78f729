package routing

import "encoding/json"

// Entry is one user's routing configuration: at most one source channel and
// any number of distinct targets, in insertion order.
type Entry struct {
	Source  *ChannelRef  `json:"source"`
	Targets []ChannelRef `json:"targets"`
}

// Table maps string-encoded user ids to their routing entries. It is the
// in-memory view of the persisted blob.
type Table map[string]Entry

// entryJSON tolerates legacy blobs: unknown keys are dropped and missing
// fields default to null source and no targets.
type entryJSON struct {
	Source  *string  `json:"source"`
	Targets []string `json:"targets"`
}

// UnmarshalJSON accepts the persisted form, skipping malformed refs instead
// of failing the whole entry.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Entry{}
	if raw.Source != nil {
		if ref, err := ParseRef(*raw.Source); err == nil {
			out.Source = &ref
		}
	}
	for _, t := range raw.Targets {
		ref, err := ParseRef(t)
		if err != nil {
			continue
		}
		out.Targets = append(out.Targets, ref)
	}
	*e = out
	return nil
}

// MarshalJSON always emits both fields so the blob stays readable by older
// deployments.
func (e Entry) MarshalJSON() ([]byte, error) {
	raw := struct {
		Source  *string  `json:"source"`
		Targets []string `json:"targets"`
	}{Targets: make([]string, 0, len(e.Targets))}
	if e.Source != nil {
		s := e.Source.String()
		raw.Source = &s
	}
	for _, t := range e.Targets {
		raw.Targets = append(raw.Targets, t.String())
	}
	return json.Marshal(raw)
}

// SetSource unconditionally replaces the source, overwriting any previous
// value.
func SetSource(e Entry, ref ChannelRef) Entry {
	e.Source = &ref
	return e
}

// ClearSource drops the source; forwarding for this user stops until a new
// one is set.
func ClearSource(e Entry) Entry {
	e.Source = nil
	return e
}

// AddTarget appends ref unless an equal target is already present.
func AddTarget(e Entry, ref ChannelRef) Entry {
	for _, t := range e.Targets {
		if t.Equal(ref) {
			return e
		}
	}
	targets := make([]ChannelRef, 0, len(e.Targets)+1)
	targets = append(targets, e.Targets...)
	targets = append(targets, ref)
	e.Targets = targets
	return e
}

// RemoveTarget removes the first occurrence of ref; absent refs are a no-op.
func RemoveTarget(e Entry, ref ChannelRef) Entry {
	for i, t := range e.Targets {
		if t.Equal(ref) {
			targets := make([]ChannelRef, 0, len(e.Targets)-1)
			targets = append(targets, e.Targets[:i]...)
			targets = append(targets, e.Targets[i+1:]...)
			e.Targets = targets
			return e
		}
	}
	return e
}

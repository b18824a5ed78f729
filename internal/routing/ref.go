package routing

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// RefKind discriminates the two representations a channel reference can take.
type RefKind int

const (
	// RefNumeric is a raw chat identifier, e.g. -1001234567890.
	RefNumeric RefKind = iota
	// RefHandle is a public @username handle stored without the @.
	RefHandle
)

// ErrEmptyRef is returned when parsing a blank channel reference.
var ErrEmptyRef = errors.New("routing: empty channel reference")

// ChannelRef identifies a channel either by numeric chat id or by public
// handle. The kind is decided once at parse time so matching never has to
// guess which form a stored string is.
type ChannelRef struct {
	Kind   RefKind
	ID     int64
	Handle string
}

// ParseRef normalizes raw user input into a ChannelRef. A leading @ is
// stripped from handles; anything that parses as a signed integer becomes a
// numeric reference.
func ParseRef(raw string) (ChannelRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ChannelRef{}, ErrEmptyRef
	}
	if strings.HasPrefix(s, "@") {
		name := strings.TrimPrefix(s, "@")
		if name == "" {
			return ChannelRef{}, ErrEmptyRef
		}
		return ChannelRef{Kind: RefHandle, Handle: name}, nil
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ChannelRef{Kind: RefNumeric, ID: id}, nil
	}
	return ChannelRef{Kind: RefHandle, Handle: s}, nil
}

// NumericRef builds a reference from a known chat id.
func NumericRef(id int64) ChannelRef {
	return ChannelRef{Kind: RefNumeric, ID: id}
}

// HandleRef builds a reference from a known username (without @).
func HandleRef(name string) ChannelRef {
	return ChannelRef{Kind: RefHandle, Handle: strings.TrimPrefix(name, "@")}
}

// String renders the canonical stored form: the bare id for numeric refs,
// @name for handles.
func (r ChannelRef) String() string {
	if r.Kind == RefNumeric {
		return strconv.FormatInt(r.ID, 10)
	}
	return "@" + r.Handle
}

// Recipient implements tele.Recipient so a ChannelRef can be passed directly
// to the transport as a send destination.
func (r ChannelRef) Recipient() string {
	return r.String()
}

// IsZero reports whether the reference is unset.
func (r ChannelRef) IsZero() bool {
	return r.Kind == RefNumeric && r.ID == 0 && r.Handle == ""
}

// Equal compares two references. Kinds must match; a numeric ref never
// equals a handle ref even if they name the same channel.
func (r ChannelRef) Equal(other ChannelRef) bool {
	if r.Kind != other.Kind {
		return false
	}
	if r.Kind == RefNumeric {
		return r.ID == other.ID
	}
	return r.Handle == other.Handle
}

// MarshalJSON stores the reference in its wire form, keeping the persisted
// blob a plain JSON string.
func (r ChannelRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON re-parses the stored string form.
func (r *ChannelRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ref, err := ParseRef(s)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

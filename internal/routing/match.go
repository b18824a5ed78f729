package routing

import (
	"sort"
	"strings"
)

// MatchResult pairs a user id with the entry whose source matched an
// incoming post.
type MatchResult struct {
	UserID string
	Entry  Entry
}

// Match returns every entry whose source refers to the incoming chat.
// Two equivalence rules apply: a numeric source equals the chat's id, and a
// handle source equals the chat's username (leading @ already stripped at
// parse time). An entry with no source never matches. Results are ordered by
// user id so repeated posts fan out deterministically.
func Match(t Table, chatID int64, chatUsername string) []MatchResult {
	username := strings.TrimPrefix(chatUsername, "@")

	var out []MatchResult
	for userID, entry := range t {
		if entry.Source == nil {
			continue
		}
		src := *entry.Source
		switch src.Kind {
		case RefNumeric:
			if src.ID == chatID {
				out = append(out, MatchResult{UserID: userID, Entry: entry})
			}
		case RefHandle:
			if username != "" && src.Handle == username {
				out = append(out, MatchResult{UserID: userID, Entry: entry})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Package replies canonicalizes the quick-reply and suggestion strings the
// assistant attaches to its messages, so the widget never renders the same
// option twice and global actions can be split out of the inline list.
package replies

import (
	"regexp"
	"strings"
)

// globalActions is the fixed set of labels meaningful in any conversational
// context. They render behind a "more options" disclosure instead of inline.
var globalActions = []string{
	"Search another medicine",
	"Shop OTC products",
	"Book appointment",
	"Contact pharmacy",
	"Talk to a pharmacist",
}

var reSearch = regexp.MustCompile(`(?i)^search(?:\s+for)?\s+(.+)$`)

// GlobalActions returns a copy of the fixed global-action label set.
func GlobalActions() []string {
	out := make([]string, len(globalActions))
	copy(out, globalActions)
	return out
}

// Key reduces a reply to its comparison form: trimmed, lowercased, internal
// whitespace collapsed, and a leading "search" / "search for" removed. Two
// replies with the same key are duplicates.
func Key(s string) string {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.Join(strings.Fields(k), " ")
	if rest, ok := strings.CutPrefix(k, "search for "); ok {
		return strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutPrefix(k, "search "); ok {
		return strings.TrimSpace(rest)
	}
	return k
}

func searchPrefixed(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "search ")
}

// Dedup removes duplicate replies while preserving first-occurrence order.
// When a generic reply and its search-prefixed variant collide, the
// search-prefixed one wins regardless of which came first, since those are
// also fed to the query dispatcher. Empty and whitespace-only entries are
// dropped.
func Dedup(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]int, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		k := Key(r)
		if idx, ok := seen[k]; ok {
			if searchPrefixed(r) && !searchPrefixed(out[idx]) {
				out[idx] = r
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, r)
	}
	return out
}

// Partition splits replies into context-specific and global subsets. A reply
// is global when its key exactly matches the key of one of the given global
// labels.
func Partition(replies []string, global []string) (contextual []string, globals []string) {
	keys := make(map[string]bool, len(global))
	for _, g := range global {
		keys[Key(g)] = true
	}
	contextual = make([]string, 0, len(replies))
	globals = make([]string, 0)
	for _, r := range replies {
		if keys[Key(r)] {
			globals = append(globals, r)
			continue
		}
		contextual = append(contextual, r)
	}
	return contextual, globals
}

// DropDuplicates filters quick replies whose key already appears among the
// message's inline suggestions, so one option is never rendered twice.
func DropDuplicates(quickReplies, suggestions []string) []string {
	keys := make(map[string]bool, len(suggestions))
	for _, s := range suggestions {
		keys[Key(s)] = true
	}
	out := make([]string, 0, len(quickReplies))
	for _, q := range quickReplies {
		if keys[Key(q)] {
			continue
		}
		out = append(out, q)
	}
	return out
}

// SearchQuery extracts the query from a "search <q>" or "search for <q>"
// phrase. ok is false when the text is not a search phrase.
func SearchQuery(s string) (string, bool) {
	m := reSearch.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

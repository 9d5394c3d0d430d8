// query.go parses the search query grammar: the "id:" reference-id selector
// and the "context.<key>=<value>" exact-match selector.
package logstore

import (
	"strconv"
	"strings"
)

const (
	referencePrefix = "id:"
	contextPrefix   = "context."
)

// parseReferenceQuery recognizes "id:<value>" queries. The value is trimmed;
// an empty value still counts as a reference query (matching nothing) rather
// than falling through to substring search, since the caller's intent is
// unambiguous.
func parseReferenceQuery(query string) (string, bool) {
	if !strings.HasPrefix(query, referencePrefix) {
		return "", false
	}
	return strings.TrimSpace(query[len(referencePrefix):]), true
}

// parseContextQuery recognizes "context.<key>=<value>" queries. The value is
// parsed as a quoted string, a boolean, or a number, in that priority order.
// An empty key, a missing '=', or an unparseable value reports !ok so the
// caller falls back to substring search.
func parseContextQuery(query string) (key string, value any, ok bool) {
	if !strings.HasPrefix(query, contextPrefix) {
		return "", nil, false
	}

	rest := query[len(contextPrefix):]
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return "", nil, false
	}

	key = strings.TrimSpace(rest[:eq])
	if key == "" {
		return "", nil, false
	}

	value, ok = parseContextValue(strings.TrimSpace(rest[eq+1:]))
	if !ok {
		return "", nil, false
	}
	return key, value, true
}

func parseContextValue(raw string) (any, bool) {
	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') || (raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			return raw[1 : len(raw)-1], true
		}
	}

	switch raw {
	case "true":
		return true, true
	case "false":
		return false, true
	}

	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n, true
	}

	return nil, false
}

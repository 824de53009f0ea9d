package inbound

import (
	"regexp"
	"strings"
)

var bracketedID = regexp.MustCompile(`<([^<>\s]+)>`)

// NormalizeMessageID returns id in canonical `<local@domain>` form, or "" for
// an empty value.
func NormalizeMessageID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.Trim(id, `"`)
	id = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">"))
	if id == "" || strings.ContainsAny(id, "<> \t\r\n") {
		return ""
	}
	return "<" + id + ">"
}

// ParseMessageIDs splits a References-style header into normalized ids,
// preserving left-to-right order and dropping repeats.
func ParseMessageIDs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var candidates []string
	if matches := bracketedID.FindAllStringSubmatch(raw, -1); len(matches) > 0 {
		for _, m := range matches {
			candidates = append(candidates, m[1])
		}
	} else {
		candidates = strings.Fields(strings.ReplaceAll(raw, ",", " "))
	}

	seen := make(map[string]struct{}, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		id := NormalizeMessageID(c)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

package middleware

import "strings"

// skipList matches request paths that a middleware leaves alone. Entries
// ending in "*" match by prefix, all others exactly.
type skipList struct {
	exact    map[string]struct{}
	prefixes []string
}

func newSkipList(patterns []string) skipList {
	list := skipList{exact: map[string]struct{}{}}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		switch {
		case pattern == "":
		case strings.HasSuffix(pattern, "*"):
			list.prefixes = append(list.prefixes, strings.TrimSuffix(pattern, "*"))
		default:
			list.exact[pattern] = struct{}{}
		}
	}
	return list
}

func (l skipList) match(path string) bool {
	if _, ok := l.exact[path]; ok {
		return true
	}
	for _, prefix := range l.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

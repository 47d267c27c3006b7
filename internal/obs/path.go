package obs

import "strings"

// CanonicalPath collapses per-resource identifiers to keep metric label
// cardinality bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	for _, prefix := range []string{"/v1/members/", "/v1/invitations/", "/v1/documents/", "/v1/reports/"} {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		return prefix + ":id"
	}
	return path
}

package enforce

import "strings"

// resolvePath walks a dot-separated path through nested payload maps.
// The second return distinguishes "present but nil" from "absent":
// comparisons against an absent field are false (except not-equals), which
// is what makes requirement gates fire on missing data.
func resolvePath(payload map[string]any, path string) (any, bool) {
	if payload == nil || path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")
	var current any = payload
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

package fsys

import (
	"path"
	"strings"
)

// splitGlobBase separates a pattern into its longest static directory prefix
// and the remaining glob portion. "src/**/*.go" yields ("src", "**/*.go");
// a fully static pattern yields the whole pattern as base.
func splitGlobBase(pattern string) (base, rest string) {
	pattern = path.Clean(strings.ReplaceAll(pattern, "\\", "/"))
	segments := strings.Split(pattern, "/")
	var static []string
	for i, seg := range segments {
		if strings.ContainsAny(seg, "*?[") {
			return strings.Join(static, "/"), strings.Join(segments[i:], "/")
		}
		static = append(static, seg)
	}
	return strings.Join(static, "/"), ""
}

// matchGlob reports whether a slash-separated relative path matches a glob
// pattern. In addition to path.Match semantics per segment, a "**" segment
// matches zero or more path segments.
func matchGlob(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pattern, name []string) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	if pattern[0] == "**" {
		// ** absorbs zero or more leading segments of name.
		for skip := 0; skip <= len(name); skip++ {
			if matchSegments(pattern[1:], name[skip:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], name[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], name[1:])
}

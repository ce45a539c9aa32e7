package filter

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Filter decides which files a folder scan picks up. Include patterns are
// matched case-insensitively against the base name; exclude patterns against
// the slash-separated path relative to the scan root.
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// New compiles include and exclude glob patterns.
// Patterns use '/' as the path separator.
func New(include, exclude []string) (*Filter, error) {
	f := &Filter{}
	for _, pat := range include {
		g, err := glob.Compile(strings.ToLower(pat), '/')
		if err != nil {
			return nil, err
		}
		f.include = append(f.include, g)
	}
	for _, pat := range exclude {
		g, err := glob.Compile(pat, '/')
		if err != nil {
			return nil, err
		}
		f.exclude = append(f.exclude, g)
	}
	return f, nil
}

// IsExcluded returns true if the given relative path matches any exclude pattern.
func (f *Filter) IsExcluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range f.exclude {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// IsIncluded returns true if the base name matches an include pattern, or
// there are no include patterns.
func (f *Filter) IsIncluded(name string) bool {
	if len(f.include) == 0 {
		return true
	}
	base := strings.ToLower(filepath.Base(name))
	for _, g := range f.include {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// Match reports whether rel should be picked up.
func (f *Filter) Match(rel string) bool {
	return f.IsIncluded(rel) && !f.IsExcluded(rel)
}

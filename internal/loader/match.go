package loader

import (
	"bufio"
	"os"
	"path"
	"regexp"
	"strings"
)

// pattern is one compiled exclude rule in gitignore syntax.
type pattern struct {
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool
}

// Excluder matches slash-separated relative paths against gitignore-style
// patterns. The last matching pattern wins, so "!keep.md" re-includes a
// file excluded by an earlier rule.
type Excluder struct {
	patterns []pattern
}

// NewExcluder compiles patterns. Blank lines and # comments are skipped.
func NewExcluder(patterns ...string) *Excluder {
	e := &Excluder{}
	for _, p := range patterns {
		e.Add(p)
	}
	return e
}

// Add compiles one pattern.
func (e *Excluder) Add(raw string) {
	p := strings.TrimSpace(raw)
	if p == "" || strings.HasPrefix(p, "#") {
		return
	}

	var pt pattern
	if strings.HasPrefix(p, "!") {
		pt.negate = true
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		pt.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		pt.anchored = true
		p = p[1:]
	}
	if strings.Contains(p, "/") && !strings.HasPrefix(p, "**/") {
		pt.anchored = true
	}
	if p == "" {
		return
	}
	pt.re = regexp.MustCompile("^" + globToRegex(p) + "$")
	e.patterns = append(e.patterns, pt)
}

// AddFile reads patterns from an ignore file. A missing file is not an
// error.
func (e *Excluder) AddFile(name string) error {
	f, err := os.Open(name)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		e.Add(sc.Text())
	}
	return sc.Err()
}

// Excluded reports whether rel (slash separated, relative to the root)
// is excluded.
func (e *Excluder) Excluded(rel string, isDir bool) bool {
	excluded := false
	for _, p := range e.patterns {
		if p.match(rel, isDir) {
			excluded = !p.negate
		}
	}
	return excluded
}

func (p pattern) match(rel string, isDir bool) bool {
	if p.anchored {
		if p.re.MatchString(rel) {
			return !p.dirOnly || isDir
		}
		// a directory pattern also covers everything below it
		for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
			if p.re.MatchString(dir) {
				return true
			}
		}
		return false
	}

	parts := strings.Split(rel, "/")
	for i, part := range parts {
		if !p.re.MatchString(part) {
			continue
		}
		last := i == len(parts)-1
		if !last || !p.dirOnly || isDir {
			return true
		}
	}
	return false
}

// globToRegex translates *, ** and ? into a regular expression. Other
// regex metacharacters are quoted.
func globToRegex(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch {
		case c == '*' && strings.HasPrefix(glob[i:], "**/"):
			b.WriteString("(?:.*/)?")
			i += 2
		case c == '*' && strings.HasPrefix(glob[i:], "**"):
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}

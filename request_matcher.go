package guard

import (
	"net/http"
	"regexp"
	"strings"
)

type RequestMatcher interface {
	Matches(r *http.Request) bool
}

type anyRequestMatcher struct{}

func (anyRequestMatcher) Matches(*http.Request) bool {
	return true
}

func (anyRequestMatcher) String() string {
	return "any request"
}

// AnyRequest matches every request.
func AnyRequest() RequestMatcher {
	return anyRequestMatcher{}
}

// PathMatcher matches a method (empty for any) and a path pattern.
//
// Pattern syntax:
//   - `*` matches zero or more characters within one path segment
//   - `**` matches zero or more whole path segments
//   - `{name}` matches exactly one non-empty path segment
type PathMatcher struct {
	Method  string
	Pattern string
	re      *regexp.Regexp
}

func NewPathMatcher(method, pattern string) PathMatcher {
	return PathMatcher{
		Method:  strings.ToUpper(method),
		Pattern: pattern,
		re:      regexp.MustCompile(compilePattern(pattern)),
	}
}

// Path matches any method.
func Path(pattern string) PathMatcher {
	return NewPathMatcher("", pattern)
}

func (m PathMatcher) Matches(r *http.Request) bool {
	if m.Method != "" && m.Method != r.Method {
		return false
	}
	return m.MatchesPath(r.URL.Path)
}

func (m PathMatcher) MatchesPath(path string) bool {
	return m.re.MatchString(path)
}

func (m PathMatcher) String() string {
	if m.Method == "" {
		return m.Pattern
	}
	return m.Method + " " + m.Pattern
}

var variableSegment = regexp.MustCompile(`\\\{[^/]*?\\\}`)

func compilePattern(pattern string) string {
	if pattern == "" || pattern == "/" {
		return "^/$"
	}
	var b strings.Builder
	b.WriteString("^")
	for _, segment := range strings.Split(strings.TrimPrefix(pattern, "/"), "/") {
		if segment == "**" {
			b.WriteString("(?:/.*)?")
			continue
		}
		b.WriteString("/")
		b.WriteString(compileSegment(segment))
	}
	b.WriteString("$")
	return b.String()
}

func compileSegment(segment string) string {
	quoted := regexp.QuoteMeta(segment)
	quoted = variableSegment.ReplaceAllString(quoted, "[^/]+")
	return strings.ReplaceAll(quoted, `\*`, "[^/]*")
}

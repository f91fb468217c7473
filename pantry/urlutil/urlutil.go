// pantry/urlutil/urlutil.go
package urlutil

import (
	"net/url"
	"strings"
)

// Reason identifies the check a redirect candidate failed.
type Reason string

const (
	ReasonEmpty          Reason = "empty"
	ReasonNotRooted      Reason = "not an absolute path"
	ReasonSchemeRelative Reason = "protocol-relative"
	ReasonBackslash      Reason = "backslash"
	ReasonEncodedChar    Reason = "encoded delimiter"
	ReasonUnparseable    Reason = "unparseable"
	ReasonOffOrigin      Reason = "resolves off origin"
)

// RedirectError reports why a candidate was not accepted as a redirect target.
type RedirectError struct {
	Candidate string
	Reason    Reason
}

func (e *RedirectError) Error() string {
	return "urlutil: unsafe redirect target (" + string(e.Reason) + ")"
}

// RedirectTarget is a same-origin path with its query and fragment split out.
// Path, Query and Fragment are in escaped form and safe to place in a
// Location header.
type RedirectTarget struct {
	Path     string
	Query    string
	Fragment string
}

// String returns the path alone.
func (t RedirectTarget) String() string {
	return t.Path
}

// WithQueryAndFragment returns the path followed by "?query" and "#fragment"
// when they are non-empty.
func (t RedirectTarget) WithQueryAndFragment() string {
	s := t.Path
	if t.Query != "" {
		s += "?" + t.Query
	}
	if t.Fragment != "" {
		s += "#" + t.Fragment
	}
	return s
}

// base is the origin candidates are resolved against. It is never contacted.
var base = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}

// encodedDelimiters are rejected before parsing so double-encoded slashes,
// backslashes, colons, at-signs and percent signs never reach the parser.
var encodedDelimiters = []string{"%2f", "%5c", "%3a", "%40", "%25"}

// ValidateRedirect runs the two-layer check on an untrusted redirect target.
// The lexical layer rejects anything that is not a single-slash rooted path
// or that carries a backslash or an encoded delimiter. The parse layer
// resolves the candidate against a fixed origin and rejects results whose
// scheme, host or path escaped that origin. Failures are *RedirectError.
func ValidateRedirect(candidate string) (RedirectTarget, error) {
	c := strings.TrimSpace(candidate)
	fail := func(r Reason) (RedirectTarget, error) {
		return RedirectTarget{}, &RedirectError{Candidate: candidate, Reason: r}
	}

	switch {
	case c == "":
		return fail(ReasonEmpty)
	case !strings.HasPrefix(c, "/"):
		return fail(ReasonNotRooted)
	case strings.HasPrefix(c, "//"):
		return fail(ReasonSchemeRelative)
	case strings.ContainsRune(c, '\\'):
		return fail(ReasonBackslash)
	}
	lower := strings.ToLower(c)
	for _, seq := range encodedDelimiters {
		if strings.Contains(lower, seq) {
			return fail(ReasonEncodedChar)
		}
	}

	ref, err := url.Parse(c)
	if err != nil {
		return fail(ReasonUnparseable)
	}
	u := base.ResolveReference(ref)

	p := u.EscapedPath()
	if u.Scheme != base.Scheme || u.Host != base.Host || u.User != nil ||
		!strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return fail(ReasonOffOrigin)
	}

	return RedirectTarget{
		Path:     p,
		Query:    u.RawQuery,
		Fragment: u.EscapedFragment(),
	}, nil
}

// SafeRedirect returns a same-origin path for candidate, or fallback when
// candidate fails any check. fallback is trusted and returned unchanged.
// With preserveQueryAndHash the query string and fragment are kept.
//
// Typical use in a handler:
//
//	dest := urlutil.SafeRedirect(r.URL.Query().Get("returnUrl"), "/", true)
//	http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
func SafeRedirect(candidate, fallback string, preserveQueryAndHash bool) string {
	t, err := ValidateRedirect(candidate)
	if err != nil {
		return fallback
	}
	if preserveQueryAndHash {
		return t.WithQueryAndFragment()
	}
	return t.Path
}

// IsValidAbsHTTPURL reports whether s is an absolute http(s) URL with a host,
// no credentials in the authority, and no CR/LF. Deploy hook URLs are checked
// with it at startup.
//
//	IsValidAbsHTTPURL("https://api.vercel.com/v1/integrations/deploy/x") // true
//	IsValidAbsHTTPURL("api.netlify.com/build_hooks/x")                  // false (no scheme)
//	IsValidAbsHTTPURL("ftp://example.com")                              // false
func IsValidAbsHTTPURL(s string) bool {
	if strings.ContainsAny(s, "\r\n") {
		return false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return u.User == nil
}

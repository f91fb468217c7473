// Package i18n knows the site's languages: Hebrew (default, right-to-left),
// English and Russian. Non-default languages live under a path prefix
// (/en/..., /ru/...); Hebrew pages have none.
package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// Lang is a supported language code.
type Lang string

const (
	Hebrew  Lang = "he"
	English Lang = "en"
	Russian Lang = "ru"

	Default = Hebrew
)

// Supported lists the languages in display order.
var Supported = []Lang{Hebrew, English, Russian}

// names are the languages' own names, as shown in the language switcher.
var names = map[Lang]string{
	Hebrew:  "עברית",
	English: "English",
	Russian: "Русский",
}

var matcher = language.NewMatcher([]language.Tag{
	language.Hebrew, // first tag is the fallback
	language.English,
	language.Russian,
})

// Name returns the language's own name, or "" for unsupported codes.
func (l Lang) Name() string {
	return names[l]
}

// Parse returns the Lang for a code such as "he" or "EN". The second
// result is false for unsupported codes.
func Parse(s string) (Lang, bool) {
	l := Lang(strings.ToLower(strings.TrimSpace(s)))
	_, ok := names[l]
	return l, ok
}

// FromPath returns the language named by the first path segment, or Default.
//
//	FromPath("/en/clinics") == English
//	FromPath("/clinics")    == Hebrew
func FromPath(p string) Lang {
	seg, _, _ := strings.Cut(strings.TrimPrefix(p, "/"), "/")
	if _, ok := names[Lang(seg)]; ok {
		return Lang(seg)
	}
	return Default
}

// PathPrefix returns "" for the default language and "/<lang>" otherwise.
func PathPrefix(l Lang) string {
	if l == Default {
		return ""
	}
	return "/" + string(l)
}

// IsRTL reports whether l is written right to left.
func IsRTL(l Lang) bool {
	return l == Hebrew
}

// Match picks the best supported language for an Accept-Language value.
// Unknown or empty input yields Default.
func Match(acceptLanguage string) Lang {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	return Supported[idx]
}

// Detect resolves the request language from, in order, the lang query
// parameter, a language path prefix, then Accept-Language.
func Detect(r *http.Request) Lang {
	if l, ok := Parse(r.URL.Query().Get("lang")); ok {
		return l
	}
	seg, _, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if l, ok := Parse(seg); ok && seg == string(l) {
		return l
	}
	return Match(r.Header.Get("Accept-Language"))
}

// Lookup walks a nested string tree by dot-separated key. A missing key,
// or one that does not end on a string, returns the key itself.
//
//	Lookup(tree, "nav.home") // "בית", or "nav.home" if absent
func Lookup(tree map[string]any, key string) string {
	var cur any = tree
	for _, k := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return key
		}
		if cur, ok = m[k]; !ok {
			return key
		}
	}
	if s, ok := cur.(string); ok {
		return s
	}
	return key
}

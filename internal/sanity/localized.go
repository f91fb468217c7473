package sanity

import (
	"strings"
	"unicode/utf8"

	"github.com/markeidelman/clinicweb/pantry/i18n"
)

// Localized holds one value per language, as stored by localizedString
// fields: {"he": "...", "en": "...", "ru": "..."}.
type Localized[T any] map[i18n.Lang]T

// Value returns the value for lang, then fallback, then English.
func (l Localized[T]) Value(lang, fallback i18n.Lang) (T, bool) {
	for _, k := range []i18n.Lang{lang, fallback, i18n.English} {
		if v, ok := l[k]; ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Translator returns a t(key) function over a decoded document. Keys are
// dot paths; a path ending on a localized object yields the lang value,
// falling back to English then Hebrew. Unresolvable keys return themselves.
func Translator(doc map[string]any, lang i18n.Lang) func(key string) string {
	return func(key string) string {
		var cur any = doc
		for _, k := range strings.Split(key, ".") {
			m, ok := cur.(map[string]any)
			if !ok {
				return key
			}
			if cur, ok = m[k]; !ok {
				return key
			}
		}
		switch v := cur.(type) {
		case string:
			return v
		case map[string]any:
			for _, l := range []i18n.Lang{lang, i18n.English, i18n.Hebrew} {
				if s, ok := v[string(l)].(string); ok {
					return s
				}
			}
		}
		return key
	}
}

// VisibleForLocale reports whether content restricted to locales is shown
// in lang. An empty list means every locale.
func VisibleForLocale(locales []string, lang i18n.Lang) bool {
	if len(locales) == 0 {
		return true
	}
	for _, l := range locales {
		if l == string(lang) {
			return true
		}
	}
	return false
}

// Block is a Portable Text block.
type Block struct {
	Type     string `json:"_type"`
	Children []struct {
		Text string `json:"text"`
	} `json:"children"`
}

// DefaultPlainTextLength suits meta descriptions.
const DefaultPlainTextLength = 160

// PortableTextToPlainText joins the text of "block" blocks with spaces.
// Longer results are cut to maxLength characters, the last three being
// "...". maxLength <= 0 means DefaultPlainTextLength.
func PortableTextToPlainText(blocks []Block, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultPlainTextLength
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type != "block" {
			continue
		}
		var sb strings.Builder
		for _, c := range b.Children {
			sb.WriteString(c.Text)
		}
		parts = append(parts, sb.String())
	}
	text := strings.TrimSpace(strings.Join(parts, " "))

	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	keep := max(maxLength-3, 0)
	r := []rune(text)
	return string(r[:keep]) + "..."
}

package pongo3

import (
	"encoding/json"
	"strings"
)

// AutoEscape selects which output formatter an emitted value passes through
// before it reaches the output sink.
type AutoEscape int

const (
	AutoEscapeNone AutoEscape = iota
	AutoEscapeHTML
	AutoEscapeJSON
	AutoEscapeCustom
	AutoEscapeAuto
)

// AutoEscapeCallback decides the AutoEscape mode for a template by name, the
// way Environment.SetAutoEscapeCallback lets a host override.
type AutoEscapeCallback func(templateName string) AutoEscape

// defaultAutoEscapeCallback mirrors minijinja's default: html-ish
// extensions escape as HTML, data extensions escape as JSON, everything
// else renders unescaped.
func defaultAutoEscapeCallback(name string) AutoEscape {
	lower := strings.ToLower(name)
	switch {
	case hasAnySuffix(lower, ".html", ".htm", ".xml", ".xhtml"):
		return AutoEscapeHTML
	case hasAnySuffix(lower, ".json", ".json5", ".yml", ".yaml"):
		return AutoEscapeJSON
	default:
		return AutoEscapeNone
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// escapeValue renders v for output under the given mode, honoring the
// "safe" marker on string values (a safe string is never re-escaped).
func escapeValue(mode AutoEscape, v Value) (string, error) {
	if v.IsSafe() || mode == AutoEscapeNone {
		return v.String(), nil
	}
	switch mode {
	case AutoEscapeHTML:
		return escapeHTML(v.String()), nil
	case AutoEscapeJSON:
		b, err := json.Marshal(v.String())
		if err != nil {
			return "", newErr(KindBadSerialization, "failed to JSON-encode value").WithCause(err)
		}
		return string(b), nil
	default:
		return v.String(), nil
	}
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&#34;",
	"'", "&#39;",
)

func escapeHTML(s string) string { return htmlEscaper.Replace(s) }

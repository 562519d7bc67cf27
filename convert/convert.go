// Package convert renders sanitized post HTML as Markdown.
package convert

import (
	"log"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// Converter turns post body HTML into Markdown. Safe for concurrent use.
type Converter struct {
	converter *md.Converter
}

// New creates a converter with GitHub-flavored defaults.
func New() *Converter {
	return &Converter{converter: md.NewConverter("", true, nil)}
}

// Markdown converts bodyHTML. Conversion failures degrade to the raw HTML
// wrapped in nothing: an imperfect document beats a lost one. The second
// return reports whether real Markdown was produced.
func (c *Converter) Markdown(bodyHTML, sourceURL string) (string, bool) {
	markdown, err := c.converter.ConvertString(bodyHTML)
	if err != nil {
		log.Printf("WARN: Markdown conversion failed for %s, keeping raw HTML: %v", sourceURL, err)
		return bodyHTML, false
	}
	return strings.TrimSpace(markdown) + "\n", true
}

// Package format renders a feed entry as HTML that Telegram's
// rich-text mode accepts.
package format

import (
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/scipunch/feedbot/fetcher"
)

// Formatter sanitizes entry content down to the small tag set
// Telegram renders inline. Everything else is stripped, not escaped.
type Formatter struct {
	policy *bluemonday.Policy
}

func New() *Formatter {
	p := bluemonday.NewPolicy()
	// <li> is not actually renderable by Telegram; it is kept here and
	// rewritten into "• " lines below.
	p.AllowElements(
		"b", "strong",
		"i", "em",
		"u", "ins",
		"s", "strike", "del",
		"tg-spoiler",
		"a", "tg-emoji",
		"code", "pre",
		"li",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("emoji-id").OnElements("tg-emoji")
	p.AllowAttrs("class").OnElements("code")
	// bluemonday's allowed-without-attributes set only knows standard
	// HTML elements, so Telegram's custom tag needs an explicit grant.
	p.AllowNoAttrs().OnElements("tg-spoiler")

	return &Formatter{policy: p}
}

// Format produces the delivery snippet: a bold hyperlink header line
// followed by the entry's content blocks, one per line. It never
// fails; malformed markup degrades to partial or empty content.
func (f *Formatter) Format(entry fetcher.Entry) string {
	title := html.EscapeString(entry.Title)

	var content strings.Builder
	for _, block := range entry.Content {
		switch block.Type {
		case fetcher.TypeHTML, fetcher.TypeXHTML:
			cleaned := f.policy.Sanitize(block.Value)
			cleaned = strings.ReplaceAll(cleaned, "\n", " ")
			cleaned = strings.ReplaceAll(cleaned, "<li>", "\n• ")
			cleaned = strings.ReplaceAll(cleaned, "</li>", "")
			content.WriteString(cleaned)
			content.WriteString("\n")
		case fetcher.TypePlain:
			content.WriteString(html.EscapeString(block.Value))
			content.WriteString("\n")
		}
	}

	result := fmt.Sprintf("<a href=\"%s\"><b>%s</b></a>\n%s", html.EscapeString(entry.Link), title, content.String())

	// Telegram treats soft hyphens as zero-width spaces and inserts
	// line breaks without hyphens, so drop them entirely.
	result = strings.ReplaceAll(result, "\u00ad", "")
	result = strings.ReplaceAll(result, "&shy;", "")

	slog.Debug("formatted entry", "id", entry.ID, "length", len(result))
	return result
}

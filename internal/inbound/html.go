package inbound

import (
	"regexp"
	"strings"
)

var (
	htmlScriptStyle = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>|<style\b[^>]*>.*?</style\s*>`)
	htmlTag         = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespace      = regexp.MustCompile(`\s+`)

	// Single pass, so "&amp;lt;" decodes to "&lt;" and not "<".
	basicEntities = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// StripHTML derives plain text from an HTML body: tags are dropped, the five
// basic entities decoded, whitespace collapsed and the result trimmed.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := htmlScriptStyle.ReplaceAllString(html, " ")
	text = htmlTag.ReplaceAllString(text, " ")
	text = basicEntities.Replace(text)
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

package chunk

import (
	"regexp"
	"strings"
)

// Telegram accepts only a small inline tag whitelist (b, strong, i, em, u,
// ins, s, strike, del, code, pre, a, tg-spoiler). Everything else must be
// stripped before splitting, so chunk boundaries only ever fall on plain text
// and never inside markup a later chunk would need to close.

var (
	reBr     = regexp.MustCompile(`(?i)<br\s*/?>`)
	reStrong = regexp.MustCompile(`(?i)<(/?)strong>`)
	reEm     = regexp.MustCompile(`(?i)<(/?)em>`)

	// Block-level containers: closing tag becomes a newline to preserve
	// spacing, opening tag is dropped.
	blockTags = []string{"p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li"}

	// Containers and media dropped entirely (content kept, no newline).
	inlineDropTags = []string{
		"span", "ul", "ol", "table", "tr", "td", "th", "thead", "tbody",
		"img", "video", "audio", "iframe", "script", "style", "head", "html", "body",
	}

	reManyNewlines = regexp.MustCompile(`\n{3,}`)
)

var (
	reBlockClose  []*regexp.Regexp
	reBlockOpen   []*regexp.Regexp
	reInlineClose []*regexp.Regexp
	reInlineOpen  []*regexp.Regexp
)

func init() {
	for _, tag := range blockTags {
		reBlockClose = append(reBlockClose, regexp.MustCompile(`(?i)</`+tag+`>`))
		reBlockOpen = append(reBlockOpen, regexp.MustCompile(`(?i)<`+tag+`(\s[^>]*)?>`))
	}
	for _, tag := range inlineDropTags {
		reInlineClose = append(reInlineClose, regexp.MustCompile(`(?i)</`+tag+`>`))
		reInlineOpen = append(reInlineOpen, regexp.MustCompile(`(?i)<`+tag+`(\s[^>]*)?>`))
	}
}

// Clean normalizes HTML down to the Telegram tag whitelist.
func Clean(text string) string {
	text = reBr.ReplaceAllString(text, "\n")

	// Normalize to the shorter variants.
	text = reStrong.ReplaceAllString(text, "<${1}b>")
	text = reEm.ReplaceAllString(text, "<${1}i>")

	for _, re := range reBlockClose {
		text = re.ReplaceAllString(text, "\n")
	}
	for _, re := range reBlockOpen {
		text = re.ReplaceAllString(text, "")
	}
	for _, re := range reInlineClose {
		text = re.ReplaceAllString(text, "")
	}
	for _, re := range reInlineOpen {
		text = re.ReplaceAllString(text, "")
	}

	text = reManyNewlines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

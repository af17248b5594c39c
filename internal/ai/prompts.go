package ai

import (
	"fmt"
	"strings"

	"briefbot/internal/fetch"
)

// Input caps keep the prompt inside the model's context budget; values carry
// over from the original pipeline.
const (
	maxSummaryInputChars   = 15000
	maxSelectionInputChars = 5000
	truncationSuffix       = "... [content truncated]"
)

const summarySystemPrompt = `You summarize a daily AI industry newsletter for a Telegram briefing.
Focus on the 3-5 biggest developments, covering:
- the main innovation
- how businesses might use it
- how realistic it is
- why it matters for AI teams

Format strictly for Telegram HTML: <b>bold</b> section titles, plain-text
bullet lines starting with "- ", blank lines between sections. Do not use
Markdown, headings (#), or any tags other than <b>, <i>, <code> and <a>.
Keep it under 800 words.`

const selectionSystemPrompt = `You pick the most relevant article links from a daily AI newsletter.
Choose 5-8 links covering real AI technology and research news. Skip
promotions, job ads, and duplicates of the same story.`

// selectionSchema constrains the selector to a list of 1-based link indexes.
const selectionSchema = `{
  "name": "selected_articles",
  "description": "Indexes of the selected article links",
  "strict": true,
  "schema": {
    "type": "object",
    "properties": {
      "selected": {
        "type": "array",
        "items": { "type": "integer" }
      }
    },
    "required": ["selected"],
    "additionalProperties": false
  }
}`

type selectionResult struct {
	Selected []int `json:"selected"`
}

func summaryUserPrompt(nl *fetch.Newsletter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize this TLDR AI newsletter from %s.\n\nNEWSLETTER CONTENT:\n%s\n", nl.Date, nl.Text)

	if len(nl.Articles) > 0 {
		b.WriteString("\n" + strings.Repeat("=", 40) + "\nARTICLE CONTENTS\n" + strings.Repeat("=", 40) + "\n")
		for i, a := range nl.Articles {
			title := fmt.Sprintf("ARTICLE %d: %s", i+1, a.URL)
			fmt.Fprintf(&b, "\n%s\n%s\n%s\n", title, strings.Repeat("-", len(title)), a.Text)
		}
	}
	return truncate(b.String(), maxSummaryInputChars)
}

func selectionUserPrompt(nl *fetch.Newsletter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Newsletter content:\n%s\n\nLinks:\n", truncate(nl.Text, maxSelectionInputChars))
	for i, l := range nl.Links {
		fmt.Fprintf(&b, "\n%d. URL: %s\n   Context: %s\n", i+1, l.URL, l.Context)
	}
	b.WriteString("\nReturn the indexes of the best articles.")
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + truncationSuffix
}

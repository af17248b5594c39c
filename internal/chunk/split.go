// Package chunk splits long formatted text into provider-legal message parts.
package chunk

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// TelegramMaxLen is Telegram's documented per-message character limit.
const TelegramMaxLen = 4096

// annotationReserve is headroom held back from the packing budget for the
// trailing "Part i of N" marker, so annotated parts still fit the cap.
// Covers up to four digits on either side.
const annotationReserve = len("\n\n<i>Part 9999 of 9999</i>")

var (
	reBlankLines  = regexp.MustCompile(`\n\n+`)
	reSentenceEnd = regexp.MustCompile(`[.!?]+\s+`)
)

// Split breaks text into ordered parts of at most maxLen characters each.
//
// Tiers, finest only applied to units the coarser tier could not fit:
// whole text, blank-line sections, single lines, sentences, words. Units at
// every tier are packed greedily, so output order is a left-to-right reading
// of the input. A single word longer than the budget is kept whole rather
// than truncated; that part may exceed maxLen (the one documented overflow).
//
// When more than one part results, each part carries a trailing
// "Part i of N" marker in italics; the packing budget reserves room for it.
func Split(text string, maxLen int) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	budget := maxLen - annotationReserve
	if budget < 1 {
		budget = 1
	}

	parts := packSections(text, budget)
	if len(parts) <= 1 {
		return parts
	}
	return annotate(parts)
}

func packSections(text string, budget int) []string {
	return pack(reBlankLines.Split(text, -1), "\n\n", budget, packLines)
}

func packLines(section string, budget int) []string {
	return pack(strings.Split(section, "\n"), "\n", budget, packSentences)
}

func packSentences(line string, budget int) []string {
	return pack(sentences(line), " ", budget, packWords)
}

func packWords(sentence string, budget int) []string {
	return pack(strings.Fields(sentence), " ", budget, nil)
}

// pack greedily joins units with sep into chunks of at most budget
// characters. A unit that alone exceeds the budget is handed to finer; with
// no finer tier it is emitted as-is (atomic overflow).
func pack(units []string, sep string, budget int, finer func(string, int) []string) []string {
	sepLen := utf8.RuneCountInString(sep)

	var chunks []string
	flush := func(cur string) []string {
		if s := strings.TrimSpace(cur); s != "" {
			chunks = append(chunks, s)
		}
		return chunks
	}

	cur := ""
	curLen := 0
	for _, u := range units {
		uLen := utf8.RuneCountInString(u)
		if uLen == 0 || strings.TrimSpace(u) == "" {
			continue
		}

		if uLen > budget {
			chunks = flush(cur)
			cur, curLen = "", 0
			if finer == nil {
				chunks = append(chunks, u)
			} else {
				chunks = append(chunks, finer(u, budget)...)
			}
			continue
		}

		switch {
		case cur == "":
			cur, curLen = u, uLen
		case curLen+sepLen+uLen > budget:
			chunks = flush(cur)
			cur, curLen = u, uLen
		default:
			cur += sep + u
			curLen += sepLen + uLen
		}
	}
	return flush(cur)
}

// sentences splits a line after terminal punctuation followed by whitespace.
// Punctuation stays with its sentence; the whitespace is the separator.
func sentences(line string) []string {
	ends := reSentenceEnd.FindAllStringIndex(line, -1)
	if len(ends) == 0 {
		return []string{line}
	}
	var out []string
	prev := 0
	for _, loc := range ends {
		// Keep the punctuation run, drop the trailing whitespace.
		end := loc[0] + punctLen(line[loc[0]:loc[1]])
		out = append(out, line[prev:end])
		prev = loc[1]
	}
	if prev < len(line) {
		out = append(out, line[prev:])
	}
	return out
}

func punctLen(match string) int {
	return len(strings.TrimRight(match, " \t\n\r"))
}

func annotate(parts []string) []string {
	n := len(parts)
	out := make([]string, n)
	for i, p := range parts {
		out[i] = p + fmt.Sprintf("\n\n<i>Part %d of %d</i>", i+1, n)
	}
	return out
}

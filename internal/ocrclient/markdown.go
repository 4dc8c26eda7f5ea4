package ocrclient

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var excessBlankLines = regexp.MustCompile(`\n{4,}`)

// PagesToMarkdown flattens a paginated OCR response into one Markdown
// document. Pages are sorted by index first since the provider does not
// guarantee arrival order; empty fragments are dropped and the remainder
// joined with a blank line.
func PagesToMarkdown(pages []Page) string {
	if len(pages) == 0 {
		return ""
	}

	sorted := make([]Page, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	parts := make([]string, 0, len(sorted))
	for _, page := range sorted {
		if strings.TrimSpace(page.Markdown) == "" {
			continue
		}
		parts = append(parts, page.Markdown)
	}

	return CleanMarkdown(strings.Join(parts, "\n\n"))
}

// CleanMarkdown normalizes OCR output: NFC normalization (OCR engines emit
// decomposed code points), runs of more than two consecutive blank lines
// collapsed to a single blank line, surrounding whitespace trimmed.
func CleanMarkdown(markdown string) string {
	cleaned := norm.NFC.String(markdown)
	cleaned = excessBlankLines.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

var orderedListItem = regexp.MustCompile(`^\d+[.)]\s`)

// ReflowParagraphs merges soft line-breaks introduced by page-layout
// wrapping into single logical paragraphs. Structural lines (headings,
// list items, table rows, blockquotes, image placeholders, fence
// delimiters) are kept verbatim and flush any pending paragraph first.
func ReflowParagraphs(markdown string) string {
	lines := strings.Split(markdown, "\n")
	out := make([]string, 0, len(lines))
	var paragraph []string

	flush := func() {
		if len(paragraph) > 0 {
			out = append(out, strings.Join(paragraph, " "))
			paragraph = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			out = append(out, "")
			continue
		}
		if isStructuralLine(trimmed) {
			flush()
			out = append(out, line)
			continue
		}
		paragraph = append(paragraph, trimmed)
	}
	flush()

	return strings.Join(out, "\n")
}

func isStructuralLine(trimmed string) bool {
	switch {
	case strings.HasPrefix(trimmed, "#"),
		strings.HasPrefix(trimmed, "- "),
		strings.HasPrefix(trimmed, "* "),
		strings.HasPrefix(trimmed, "+ "),
		strings.HasPrefix(trimmed, ">"),
		strings.HasPrefix(trimmed, "|"),
		strings.HasPrefix(trimmed, "!["),
		strings.HasPrefix(trimmed, "```"):
		return true
	}
	return orderedListItem.MatchString(trimmed)
}

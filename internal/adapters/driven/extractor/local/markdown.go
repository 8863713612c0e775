package local

import (
	"regexp"
	"strings"
)

var (
	mdCodeBlock     = regexp.MustCompile("(?s)```[^`]*```")
	mdInlineCode    = regexp.MustCompile("`[^`]+`")
	mdImages        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLinks         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeadings      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBlockquote    = regexp.MustCompile(`(?m)^>\s*`)
	mdHR            = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	mdListMarkers   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdNumberedList  = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	mdMultiNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes common markdown formatting, producing the plain
// text a Generic/Auto extraction mode feeds to the chunker.
func stripMarkdown(content string) string {
	content = mdCodeBlock.ReplaceAllString(content, "")
	content = mdInlineCode.ReplaceAllString(content, "")
	content = mdImages.ReplaceAllString(content, "")
	content = mdLinks.ReplaceAllString(content, "$1")
	content = mdHeadings.ReplaceAllString(content, "")

	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "*", "")
	content = strings.ReplaceAll(content, "_", " ")

	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdHR.ReplaceAllString(content, "")
	content = mdListMarkers.ReplaceAllString(content, "")
	content = mdNumberedList.ReplaceAllString(content, "")
	content = mdMultiNewlines.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}

// markdownTitle returns the first H1 heading, if any.
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}

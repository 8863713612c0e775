package local

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var multiNewlinesPDF = regexp.MustCompile(`\n{3,}`)

// extractPDFText reads every page's plain text with ledongthuc/pdf,
// skipping pages that fail to extract rather than aborting the whole
// document — a scanned or malformed page shouldn't sink the rest.
func extractPDFText(content []byte) (text string, pageCount int, err error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	pageCount = r.NumPage()
	var sb strings.Builder
	for i := 1; i <= pageCount; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			sb.WriteString(pageText)
			sb.WriteString("\n\n")
		}
	}

	text = multiNewlinesPDF.ReplaceAllString(sb.String(), "\n\n")
	return strings.TrimSpace(text), pageCount, nil
}

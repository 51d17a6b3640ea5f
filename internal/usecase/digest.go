package usecase

import (
	"fmt"
	"strings"

	"NewsIngestor/internal/domain"
)

// markdownEscaper escapes the characters Telegram's legacy Markdown treats as entity markers.
var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func buildDigestMessage(articles []domain.Article) string {
	if len(articles) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%d new articles*\n\n", len(articles))
	for _, a := range articles {
		fmt.Fprintf(&b, "- %s\n%s | Score: %d\n%s\n\n",
			markdownEscaper.Replace(a.Title),
			a.Category,
			a.ViabilityScore,
			markdownEscaper.Replace(a.URL))
	}

	return strings.TrimRight(b.String(), "\n")
}

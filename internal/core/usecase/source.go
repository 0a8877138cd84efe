package usecase

import (
	"fmt"
	"strings"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

// buildSourceReference derives the presentation-only citation for a
// retrieved chunk. It is computed per query and never persisted.
func buildSourceReference(meta domain.ChunkMetadata) domain.SourceReference {
	title := cleanTitle(meta.Title)
	date := firstNonEmpty(meta.LastAmended, meta.EffectiveDate, meta.DocumentDate)

	section := meta.SectionNumber
	if section == "" && meta.SectionTitle != "" {
		section = meta.SectionTitle
	}

	return domain.SourceReference{
		Title:    title,
		Citation: formatCitation(title, meta.SectionNumber, date),
		URL:      meta.URL,
		Section:  section,
		Date:     date,
	}
}

// cleanTitle strips crawler artifacts: file extensions, site-name
// suffixes after a pipe, and collapsed whitespace.
func cleanTitle(title string) string {
	if i := strings.Index(title, "|"); i > 0 {
		title = title[:i]
	}
	for _, ext := range []string{".pdf", ".doc", ".docx", ".html"} {
		title = strings.TrimSuffix(strings.TrimSpace(title), ext)
	}
	return strings.Join(strings.Fields(title), " ")
}

func formatCitation(title, sectionNumber, date string) string {
	var b strings.Builder
	b.WriteString(title)
	if sectionNumber != "" {
		fmt.Fprintf(&b, ", §%s", sectionNumber)
	}
	if year := yearRe.FindString(date); year != "" {
		fmt.Fprintf(&b, " (%s)", year)
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

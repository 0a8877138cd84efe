package chunking

import (
	"regexp"
	"strings"
)

// section is one structural unit produced by boundary splitting. Table
// sections are atomic: the packer never subdivides them.
type section struct {
	number  string
	title   string
	text    string
	isTable bool
}

var (
	headingRe       = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	sectionNumberRe = regexp.MustCompile(`^(?:§\s*)?(\d+(?:[.-]\d+)*)\.?\s*(.*)$`)
	tableSepRe      = regexp.MustCompile(`^\s*\|?[\s:|-]+\|[\s:|-]*$`)
)

func splitSections(text string, strategy BoundaryStrategy) []section {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if strategy == StrategyTableAtomic {
		return splitTableAtomic(text)
	}
	return splitHeadingSections(text)
}

// splitHeadingSections splits at markdown-style heading markers. Text
// before the first heading is kept as an Introduction section; a
// document with no headings at all becomes a single untitled section
// and degrades to paragraph packing.
func splitHeadingSections(text string) []section {
	matches := headingRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []section{{text: text}}
	}

	var out []section
	if preamble := strings.TrimSpace(text[:matches[0][0]]); preamble != "" {
		out = append(out, section{title: "Introduction", text: preamble})
	}

	for i, m := range matches {
		heading := strings.TrimSpace(text[m[2]:m[3]])
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(text[m[1]:end])
		if body == "" && heading == "" {
			continue
		}

		number, title := parseSectionHeading(heading)
		out = append(out, section{number: number, title: title, text: body})
	}
	return out
}

// parseSectionHeading pulls a leading clause number ("4.1", "5-2",
// "§12") out of a heading when present.
func parseSectionHeading(heading string) (number, title string) {
	m := sectionNumberRe.FindStringSubmatch(heading)
	if m == nil {
		return "", heading
	}
	title = strings.TrimSpace(m[2])
	if title == "" {
		title = heading
	}
	return m[1], title
}

// splitTableAtomic extracts pipe-delimited tables as standalone atomic
// sections and splits the surrounding narrative on blank lines.
func splitTableAtomic(text string) []section {
	lines := strings.Split(text, "\n")

	var out []section
	var narrative []string

	flushNarrative := func() {
		block := strings.TrimSpace(strings.Join(narrative, "\n"))
		narrative = narrative[:0]
		if block == "" {
			return
		}
		for _, para := range strings.Split(block, "\n\n") {
			para = strings.TrimSpace(para)
			if para != "" {
				out = append(out, section{text: para})
			}
		}
	}

	for i := 0; i < len(lines); {
		if !isTableStart(lines, i) {
			narrative = append(narrative, lines[i])
			i++
			continue
		}

		flushNarrative()
		start := i
		for i < len(lines) && isTableRow(lines[i]) {
			i++
		}
		table := strings.TrimSpace(strings.Join(lines[start:i], "\n"))
		out = append(out, section{text: table, isTable: true})
	}
	flushNarrative()
	return out
}

// isTableStart requires a header row followed by a separator row, so a
// stray pipe in prose is not mistaken for a table.
func isTableStart(lines []string, i int) bool {
	if !isTableRow(lines[i]) {
		return false
	}
	return i+1 < len(lines) && tableSepRe.MatchString(lines[i+1])
}

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.Count(trimmed, "|") >= 2
}

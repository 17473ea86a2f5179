package report

import (
	"strings"
)

// Section is a titled block of report lines.
type Section struct {
	Title string
	Lines []string
}

// Sections keeps report sections in the order they appear in the text.
type Sections []Section

// Get returns the lines of the section with the given title.
func (s Sections) Get(title string) ([]string, bool) {
	for _, sec := range s {
		if sec.Title == title {
			return sec.Lines, true
		}
	}
	return nil, false
}

// Titles lists section titles in order.
func (s Sections) Titles() []string {
	titles := make([]string, len(s))
	for i, sec := range s {
		titles[i] = sec.Title
	}
	return titles
}

// ParseSections splits report text into sections. A header is a line whose
// first character is a digit and which contains ". "; its title is the text
// after the first ". ". Non-blank lines that follow, trimmed, form the body
// until the next header. Lines before the first header are dropped and a
// repeated title replaces the earlier body in place.
func ParseSections(text string) Sections {
	var (
		sections Sections
		current  = -1
	)

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isHeader(line) {
			title := strings.TrimSpace(strings.SplitN(line, ". ", 2)[1])
			current = indexOf(sections, title)
			if current < 0 {
				sections = append(sections, Section{Title: title, Lines: []string{}})
				current = len(sections) - 1
			} else {
				sections[current].Lines = []string{}
			}
			continue
		}
		if current >= 0 {
			sections[current].Lines = append(sections[current].Lines, trimmed)
		}
	}
	return sections
}

func isHeader(line string) bool {
	return line != "" && line[0] >= '0' && line[0] <= '9' && strings.Contains(line, ". ")
}

func indexOf(sections Sections, title string) int {
	for i, sec := range sections {
		if sec.Title == title {
			return i
		}
	}
	return -1
}

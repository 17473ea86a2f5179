// Package report turns an identification match into the three-section text
// report shown on the result page.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/example/plantid/internal/plantnet"
)

// LowConfidenceThreshold is the percentage below which the report advises
// the user to double-check the identification.
const LowConfidenceThreshold = 80.0

const (
	unknown = "Unknown"

	LowConfidenceNote = "Note: This identification has a lower confidence score. " +
		"Consider taking another photo or consulting with a plant expert for verification."
)

// Report is the rendered outcome of one identification.
type Report struct {
	Text          string
	Sections      Sections
	Confidence    float64
	LowConfidence bool
}

// Build formats m and derives the page sections by parsing the formatted text,
// so the sections always agree with what Text says.
func Build(m plantnet.Match) Report {
	text := Format(m)
	confidence := Confidence(m)
	return Report{
		Text:          text,
		Sections:      ParseSections(text),
		Confidence:    confidence,
		LowConfidence: confidence < LowConfidenceThreshold,
	}
}

// Confidence is the match score as a percentage rounded to two decimals.
// A missing score counts as zero; out-of-range scores pass through.
func Confidence(m plantnet.Match) float64 {
	var score float64
	if m.Score != nil {
		score = *m.Score
	}
	return RoundPercent(score * 100)
}

// RoundPercent rounds v to two decimals on its exact binary value, ties to
// even, so the result prints the same as the legacy report.
func RoundPercent(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return rounded
}

// Format renders the legacy report text for m. Missing fields read "Unknown".
func Format(m plantnet.Match) string {
	scientificName := orUnknown(m.ScientificName)
	family := orUnknown(m.Family)
	genus := orUnknown(m.Genus)
	commonNames := m.CommonNames
	if commonNames == nil {
		commonNames = []string{unknown}
	}

	confidence := Confidence(m)
	score := FormatPercent(confidence)

	note := ""
	if confidence < LowConfidenceThreshold {
		note = "\n" + LowConfidenceNote
	}

	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "1. Plant Identification (Confidence: %s%%)\n", score)
	fmt.Fprintf(&b, "   - Scientific Name: %s\n", scientificName)
	fmt.Fprintf(&b, "   - Common Name(s): %s\n", strings.Join(commonNames, ", "))
	fmt.Fprintf(&b, "   - Family: %s\n", family)
	fmt.Fprintf(&b, "   - Genus: %s\n", genus)
	b.WriteString("\n")
	b.WriteString("2. Plant Details\n")
	b.WriteString("   - Scientific Classification:\n")
	fmt.Fprintf(&b, "     * Family: %s\n", family)
	fmt.Fprintf(&b, "     * Genus: %s\n", genus)
	fmt.Fprintf(&b, "     * Species: %s\n", scientificName)
	b.WriteString("\n")
	b.WriteString("3. Match Confidence\n")
	fmt.Fprintf(&b, "   - Identification confidence score: %s%%\n", score)
	fmt.Fprintf(&b, "   %s\n", note)
	return b.String()
}

// FormatPercent prints v with the shortest exact representation and at least
// one decimal place: 92 -> "92.0", 87.65 -> "87.65".
func FormatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}

func orUnknown(s *string) string {
	if s == nil {
		return unknown
	}
	return *s
}

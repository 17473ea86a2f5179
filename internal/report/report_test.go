package report

import (
	"reflect"
	"strings"
	"testing"

	"github.com/example/plantid/internal/plantnet"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func roseMatch() plantnet.Match {
	return plantnet.Match{
		ScientificName: strPtr("Rosa gallica"),
		CommonNames:    []string{"French rose"},
		Family:         strPtr("Rosaceae"),
		Genus:          strPtr("Rosa"),
		Score:          floatPtr(0.92),
	}
}

func TestFormatHighConfidenceMatchesLegacyText(t *testing.T) {
	want := "\n" +
		"1. Plant Identification (Confidence: 92.0%)\n" +
		"   - Scientific Name: Rosa gallica\n" +
		"   - Common Name(s): French rose\n" +
		"   - Family: Rosaceae\n" +
		"   - Genus: Rosa\n" +
		"\n" +
		"2. Plant Details\n" +
		"   - Scientific Classification:\n" +
		"     * Family: Rosaceae\n" +
		"     * Genus: Rosa\n" +
		"     * Species: Rosa gallica\n" +
		"\n" +
		"3. Match Confidence\n" +
		"   - Identification confidence score: 92.0%\n" +
		"   \n"

	if got := Format(roseMatch()); got != want {
		t.Fatalf("unexpected report text:\n%q\nwant:\n%q", got, want)
	}
}

func TestBuildRoseScenario(t *testing.T) {
	r := Build(roseMatch())

	if r.Confidence != 92.0 {
		t.Fatalf("expected 92.0, got %v", r.Confidence)
	}
	if r.LowConfidence || strings.Contains(r.Text, LowConfidenceNote) {
		t.Fatal("did not expect the advisory note")
	}
	wantTitles := []string{"Plant Identification (Confidence: 92.0%)", "Plant Details", "Match Confidence"}
	if got := r.Sections.Titles(); !reflect.DeepEqual(got, wantTitles) {
		t.Fatalf("unexpected titles %v", got)
	}

	details, ok := r.Sections.Get("Plant Details")
	if !ok {
		t.Fatal("missing Plant Details section")
	}
	wantDetails := []string{
		"- Scientific Classification:",
		"* Family: Rosaceae",
		"* Genus: Rosa",
		"* Species: Rosa gallica",
	}
	if !reflect.DeepEqual(details, wantDetails) {
		t.Fatalf("unexpected details %q", details)
	}
}

func TestBuildMissingFieldsScenario(t *testing.T) {
	r := Build(plantnet.Match{Score: floatPtr(0.5)})

	if r.Confidence != 50.0 {
		t.Fatalf("expected 50.0, got %v", r.Confidence)
	}
	if !r.LowConfidence {
		t.Fatal("expected low confidence")
	}

	ident, ok := r.Sections.Get("Plant Identification (Confidence: 50.0%)")
	if !ok {
		t.Fatalf("missing identification section, have %v", r.Sections.Titles())
	}
	wantIdent := []string{
		"- Scientific Name: Unknown",
		"- Common Name(s): Unknown",
		"- Family: Unknown",
		"- Genus: Unknown",
	}
	if !reflect.DeepEqual(ident, wantIdent) {
		t.Fatalf("unexpected identification lines %q", ident)
	}

	confidence, _ := r.Sections.Get("Match Confidence")
	wantConfidence := []string{"- Identification confidence score: 50.0%", LowConfidenceNote}
	if !reflect.DeepEqual(confidence, wantConfidence) {
		t.Fatalf("unexpected confidence lines %q", confidence)
	}
}

func TestAdvisoryNoteThreshold(t *testing.T) {
	tests := []struct {
		score    float64
		wantNote bool
	}{
		{score: 0.0, wantNote: true},
		{score: 0.7999, wantNote: true},
		{score: 0.8, wantNote: false},
		{score: 0.95, wantNote: false},
		{score: 1.3, wantNote: false},
	}

	for _, tt := range tests {
		r := Build(plantnet.Match{Score: floatPtr(tt.score)})
		if got := strings.Contains(r.Text, LowConfidenceNote); got != tt.wantNote {
			t.Fatalf("score %v: expected note=%t, got %t", tt.score, tt.wantNote, got)
		}
		if r.LowConfidence != tt.wantNote {
			t.Fatalf("score %v: LowConfidence=%t", tt.score, r.LowConfidence)
		}
	}
}

func TestConfidenceRounding(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
		text  string
	}{
		{score: 0.92, want: 92, text: "92.0"},
		{score: 0.87654, want: 87.65, text: "87.65"},
		{score: 0.123456, want: 12.35, text: "12.35"},
		{score: 1.5, want: 150, text: "150.0"},
		{score: -0.1, want: -10, text: "-10.0"},
		{score: 0.76095, want: 76.09, text: "76.09"},
		{score: 0.71285, want: 71.28, text: "71.28"},
		{score: 0.51205, want: 51.2, text: "51.2"},
		{score: 0.00125, want: 0.12, text: "0.12"},
	}

	for _, tt := range tests {
		got := Confidence(plantnet.Match{Score: floatPtr(tt.score)})
		if got != tt.want {
			t.Fatalf("score %v: expected %v, got %v", tt.score, tt.want, got)
		}
		if s := FormatPercent(got); s != tt.text {
			t.Fatalf("score %v: expected %q, got %q", tt.score, tt.text, s)
		}
	}

	if got := Confidence(plantnet.Match{}); got != 0 {
		t.Fatalf("expected missing score to count as 0, got %v", got)
	}
}

func TestFormatJoinsCommonNames(t *testing.T) {
	m := roseMatch()
	m.CommonNames = []string{"French rose", "Gallic rose", "Rose of Provins"}

	if !strings.Contains(Format(m), "   - Common Name(s): French rose, Gallic rose, Rose of Provins\n") {
		t.Fatal("expected comma-joined common names")
	}
}

func TestParseSectionsAlwaysYieldsThreeNonEmptySections(t *testing.T) {
	matches := []plantnet.Match{
		roseMatch(),
		{},
		{Score: floatPtr(0.42), CommonNames: []string{}},
		{ScientificName: strPtr("Quercus robur"), Score: floatPtr(0.999)},
	}

	for i, m := range matches {
		sections := ParseSections(Format(m))
		if len(sections) != 3 {
			t.Fatalf("match %d: expected 3 sections, got %v", i, sections.Titles())
		}
		if !strings.HasPrefix(sections[0].Title, "Plant Identification") ||
			sections[1].Title != "Plant Details" ||
			sections[2].Title != "Match Confidence" {
			t.Fatalf("match %d: unexpected titles %v", i, sections.Titles())
		}
		for _, sec := range sections {
			if len(sec.Lines) == 0 {
				t.Fatalf("match %d: section %q has no lines", i, sec.Title)
			}
		}
	}
}

func TestParseSectionsEdgeCases(t *testing.T) {
	text := "preamble line\n1. First\n  body a\n\n  1.5 not a header\n2. Second\n1. First\nreplaced\n"

	sections := ParseSections(text)
	want := Sections{
		{Title: "First", Lines: []string{"replaced"}},
		{Title: "Second", Lines: []string{}},
	}
	if !reflect.DeepEqual(sections, want) {
		t.Fatalf("unexpected sections %#v", sections)
	}
}

package plantnet

// Match is one candidate species from an identification response. Nil fields
// were absent from the response.
type Match struct {
	ScientificName *string
	CommonNames    []string
	Family         *string
	Genus          *string
	Score          *float64
}

type identifyResponse struct {
	Results []result `json:"results"`
	Message string   `json:"message,omitempty"`
}

type result struct {
	Score   *float64 `json:"score"`
	Species *species `json:"species"`
}

type species struct {
	ScientificNameWithoutAuthor *string  `json:"scientificNameWithoutAuthor"`
	CommonNames                 []string `json:"commonNames"`
	Family                      *taxon   `json:"family"`
	Genus                       *taxon   `json:"genus"`
}

type taxon struct {
	ScientificNameWithoutAuthor *string `json:"scientificNameWithoutAuthor"`
}

func (r result) match() Match {
	m := Match{Score: r.Score}
	if r.Species == nil {
		return m
	}
	m.ScientificName = r.Species.ScientificNameWithoutAuthor
	m.CommonNames = r.Species.CommonNames
	if r.Species.Family != nil {
		m.Family = r.Species.Family.ScientificNameWithoutAuthor
	}
	if r.Species.Genus != nil {
		m.Genus = r.Species.Genus.ScientificNameWithoutAuthor
	}
	return m
}

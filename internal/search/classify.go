package search

import "regexp"

// QueryTraits are the heuristic flags driving tier selection.
type QueryTraits struct {
	HasExplicitDate     bool
	LooksLikeNews       bool
	LooksLikeWeather    bool
	NeedsCurrentDetails bool
}

// Classifier tags a query with routing traits. Kept behind an interface so
// the keyword heuristics can be replaced without touching the tier
// orchestration.
type Classifier interface {
	Classify(query string) QueryTraits
}

// The keyword heuristics are approximate by design; they only bias which
// tier is tried first, never the correctness of the results.
var (
	explicitDateRegex = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|today|yesterday|tomorrow|\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|\d{4})\b`)
	newsRegex         = regexp.MustCompile(`(?i)\b(news|headline|headlines|breaking|latest|announce|announced|press release)\b`)
	weatherRegex      = regexp.MustCompile(`(?i)\b(weather|forecast|temperature|rainfall|humidity|wind speed|climate today)\b`)
	currentDataRegex  = regexp.MustCompile(`(?i)\b(current|now|price|prices|stock|score|scores|schedule|release date|how much|exchange rate|population|statistics)\b`)
)

// KeywordClassifier classifies queries with regex keyword matching.
type KeywordClassifier struct{}

// Classify implements Classifier.
func (KeywordClassifier) Classify(query string) QueryTraits {
	return QueryTraits{
		HasExplicitDate:     explicitDateRegex.MatchString(query),
		LooksLikeNews:       newsRegex.MatchString(query),
		LooksLikeWeather:    weatherRegex.MatchString(query),
		NeedsCurrentDetails: currentDataRegex.MatchString(query),
	}
}

package extract

import "fmt"

// FailureKind identifies why extraction rejected a candidate.
type FailureKind string

const (
	// NoContent means no body container selector matched anything usable.
	NoContent FailureKind = "no_content"
	// NoDate means no publish date could be recovered from the page. Dates
	// are never fabricated, so this is fatal for the candidate.
	NoDate FailureKind = "no_date"
	// IsListing means the matched content container held multiple
	// independently permalinked entries: the page aggregates posts rather
	// than being one.
	IsListing FailureKind = "is_listing"
)

// Failure is the typed error returned when a candidate cannot be extracted.
// Failures are per-candidate: callers log them and move on.
type Failure struct {
	Kind FailureKind
	URL  string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("extraction failed (%s) for %s", f.Kind, f.URL)
}

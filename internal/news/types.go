// Package news defines the domain model and the contracts between the
// pipeline stages.
package news

// Status is the lifecycle state of a stored item, encoded as a single
// character in the database.
type Status string

const (
	// StatusNew marks an item waiting for submission.
	StatusNew Status = "N"
	// StatusSubmitted marks an item the form accepted.
	StatusSubmitted Status = "S"
	// StatusError marks an item abandoned after repeated failures.
	StatusError Status = "E"
)

// Terminal reports whether the item will never be retried.
func (s Status) Terminal() bool {
	return s == StatusSubmitted || s == StatusError
}

// Kind selects the Google search vertical a task runs against.
type Kind string

const (
	// KindNews searches the news vertical, scoped to six months.
	KindNews Kind = "news"
	// KindWeb searches the general index, scoped to one year.
	KindWeb Kind = "web"
)

// SearchTask is one configured query/category pair.
type SearchTask struct {
	Category string `mapstructure:"category"`
	Query    string `mapstructure:"query"`
	Kind     Kind   `mapstructure:"kind"`
	Lang     string `mapstructure:"lang"`
}

// Candidate is a raw search result before enrichment.
type Candidate struct {
	Title    string
	URL      string
	Snippet  string
	DateRaw  string
	Category string
}

// Item is one persisted news record. The batch capture timestamp is
// deliberately not part of the row; it lives with the run that
// harvested the batch and reaches the form only at submission time.
type Item struct {
	ID          int64
	Title       string
	URL         string
	PublishDate string
	Source      string
	Description string
	Status      Status
	FailCount   int
}

// FailureResult reports the outcome of recording a failed submission.
// The zero value means the item was already terminal and nothing
// changed.
type FailureResult struct {
	FailCount int
	Status    Status
}

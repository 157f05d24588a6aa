package models

// FAQRecord is a single cached question/answer pair. The order of records in
// the store defines the row order of the semantic cache index.
type FAQRecord struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// WriteOutcome reports which path a feedback write took.
type WriteOutcome string

const (
	OutcomeAppended WriteOutcome = "appended"
	OutcomeReplaced WriteOutcome = "replaced"
)

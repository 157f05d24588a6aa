package models

// Source tags where an answer came from.
type Source string

const (
	SourceCache     Source = "cache"
	SourceGenerator Source = "generator"
	SourceNone      Source = "none"
	SourceError     Source = "error"
)

// Label returns the user-facing model name reported by the chat API.
func (s Source) Label() string {
	switch s {
	case SourceCache:
		return "KNN (Caché Semántico)"
	case SourceGenerator:
		return "LLM (RAG Generativo)"
	case SourceError:
		return "Error"
	default:
		return "Nulo"
	}
}

// Decision is the outcome of routing one question.
type Decision struct {
	Source   Source  `json:"source"`
	Answer   string  `json:"answer"`
	Distance float64 `json:"distance"`
	// HasDistance is false when the cache was not consulted.
	HasDistance bool `json:"has_distance"`
}

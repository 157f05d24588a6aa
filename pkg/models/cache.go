package models

import "time"

// CacheStats reports the state of the semantic cache.
type CacheStats struct {
	Rows       int       `json:"rows"`
	Vocabulary int       `json:"vocabulary"`
	Lookups    int64     `json:"lookups"`
	Rebuilds   int64     `json:"rebuilds"`
	BuiltAt    time.Time `json:"built_at"`
}

// Neighbor is one nearest-neighbour candidate returned by a cache lookup.
type Neighbor struct {
	Index    int     `json:"index"`
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Distance float64 `json:"distance"`
}

// Package semantic implements the semantic FAQ cache: a nearest-neighbour
// index over normalized question strings under cosine distance.
//
// A Cache holds an immutable snapshot (vocabulary, row vectors and records)
// behind an atomic pointer. Queries read whichever snapshot is current;
// rebuilds construct a complete new snapshot and swap it in, so a query never
// observes a partially fitted index. Rebuilds are serialized.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pario-ai/faqbot/pkg/models"
)

var (
	// ErrData is returned when the records a cache is built from are
	// malformed or cannot be loaded.
	ErrData = errors.New("faq data error")
	// ErrQuery reports an unexpected fault during a lookup.
	ErrQuery = errors.New("cache query error")
)

// Loader supplies the records a cache is built from.
type Loader interface {
	Load(ctx context.Context) ([]models.FAQRecord, error)
}

// Match is the nearest cached record for a question. When Found is false the
// cache is empty and Distance is 1.
type Match struct {
	Question string
	Answer   string
	Index    int
	Distance float64
	Found    bool
}

var noMatch = Match{Index: -1, Distance: 1}

type snapshot struct {
	vocab   vocabulary
	rows    []termVector
	records []models.FAQRecord
	builtAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	current  atomic.Pointer[snapshot]
	mu       sync.Mutex
	lookups  atomic.Int64
	rebuilds atomic.Int64
	logger   *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for rebuild events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns an empty cache that reports no match for every question.
func New(opts ...Option) *Cache {
	c := &Cache{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.current.Store(&snapshot{vocab: vocabulary{}, builtAt: time.Now().UTC()})
	return c
}

// Build fits a new cache over records.
func Build(records []models.FAQRecord, opts ...Option) (*Cache, error) {
	c := New(opts...)
	if err := c.Rebuild(records); err != nil {
		return nil, err
	}
	return c, nil
}

// Open loads records from l and fits a new cache over them. It is meant for
// process start, where a load failure has no previous snapshot to fall back on.
func Open(ctx context.Context, l Loader, opts ...Option) (*Cache, error) {
	c := New(opts...)
	if err := c.Reload(ctx, l); err != nil {
		return nil, err
	}
	return c, nil
}

// Rebuild refits the cache from records. On error the previous snapshot
// stays in service.
func (c *Cache) Rebuild(records []models.FAQRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuildLocked(records)
}

// Reload loads the current records from l and refits the cache. Loading and
// fitting happen under the rebuild lock, so concurrent reloads are applied in
// order and each sees a store state at least as new as the one before it.
func (c *Cache) Reload(ctx context.Context, l Loader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := l.Load(ctx)
	if err != nil {
		c.logger.Error("cache reload failed, keeping previous snapshot", "error", err)
		return fmt.Errorf("%w: load records: %w", ErrData, err)
	}
	return c.rebuildLocked(records)
}

func (c *Cache) rebuildLocked(records []models.FAQRecord) error {
	snap, err := newSnapshot(records)
	if err != nil {
		c.logger.Error("cache rebuild failed, keeping previous snapshot", "error", err)
		return err
	}
	c.current.Store(snap)
	c.rebuilds.Add(1)
	c.logger.Info("semantic cache rebuilt", "rows", len(snap.rows), "vocabulary", len(snap.vocab))
	return nil
}

func newSnapshot(records []models.FAQRecord) (*snapshot, error) {
	docs := make([][]string, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.Question) == "" {
			return nil, fmt.Errorf("%w: record %d has no question", ErrData, i)
		}
		if strings.TrimSpace(rec.Answer) == "" {
			return nil, fmt.Errorf("%w: record %d has no answer", ErrData, i)
		}
		docs[i] = analyze(rec.Question)
	}

	vocab := fitVocabulary(docs)
	rows := make([]termVector, len(docs))
	for i, doc := range docs {
		rows[i] = vocab.transform(doc)
	}

	return &snapshot{
		vocab:   vocab,
		rows:    rows,
		records: slices.Clone(records),
		builtAt: time.Now().UTC(),
	}, nil
}

// Query returns the single nearest record to question. It never mutates the
// cache. An empty cache yields a Match with Found false and Distance 1; an
// internal fault yields the same plus an ErrQuery error.
//
// Among rows at the same distance, a row whose stored question equals the
// input exactly wins, then the most recently written row.
func (c *Cache) Query(question string) (m Match, err error) {
	c.lookups.Add(1)
	snap := c.current.Load()

	defer func() {
		if r := recover(); r != nil {
			m = noMatch
			err = fmt.Errorf("%w: %v", ErrQuery, r)
		}
	}()

	if len(snap.rows) == 0 {
		return noMatch, nil
	}

	q := snap.vocab.transform(analyze(question))
	best, bestDist := -1, 0.0
	for i, row := range snap.rows {
		d := cosineDistance(q, row)
		if best < 0 || snap.better(question, i, d, best, bestDist) {
			best, bestDist = i, d
		}
	}

	rec := snap.records[best]
	return Match{
		Question: rec.Question,
		Answer:   rec.Answer,
		Index:    best,
		Distance: bestDist,
		Found:    true,
	}, nil
}

// Lookup returns up to k nearest records ordered the same way Query ranks
// them. It is meant for diagnostics.
func (c *Cache) Lookup(question string, k int) []models.Neighbor {
	snap := c.current.Load()
	if k <= 0 || len(snap.rows) == 0 {
		return nil
	}

	q := snap.vocab.transform(analyze(question))
	dists := make([]float64, len(snap.rows))
	order := make([]int, len(snap.rows))
	for i, row := range snap.rows {
		dists[i] = cosineDistance(q, row)
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		switch {
		case snap.better(question, a, dists[a], b, dists[b]):
			return -1
		case snap.better(question, b, dists[b], a, dists[a]):
			return 1
		default:
			return 0
		}
	})

	if k > len(order) {
		k = len(order)
	}
	out := make([]models.Neighbor, 0, k)
	for _, i := range order[:k] {
		out = append(out, models.Neighbor{
			Index:    i,
			Question: snap.records[i].Question,
			Answer:   snap.records[i].Answer,
			Distance: dists[i],
		})
	}
	return out
}

// better reports whether row i at distance di ranks ahead of row j at dj.
func (s *snapshot) better(question string, i int, di float64, j int, dj float64) bool {
	if di != dj {
		return di < dj
	}
	ei := s.records[i].Question == question
	ej := s.records[j].Question == question
	if ei != ej {
		return ei
	}
	return i > j
}

// Len returns the number of indexed rows.
func (c *Cache) Len() int {
	return len(c.current.Load().rows)
}

// Stats returns the current cache metrics.
func (c *Cache) Stats() models.CacheStats {
	snap := c.current.Load()
	return models.CacheStats{
		Rows:       len(snap.rows),
		Vocabulary: len(snap.vocab),
		Lookups:    c.lookups.Load(),
		Rebuilds:   c.rebuilds.Load(),
		BuiltAt:    snap.builtAt,
	}
}

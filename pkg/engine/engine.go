package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recolab/reco/pkg/data"
	"github.com/recolab/reco/pkg/score"
)

// Request describes a single recommendation run.
type Request struct {
	// User the run is scoring candidates for.
	User string
	// Months of interaction history the engines consider.
	Months int
}

// Since returns the date floor for the request window.
func (r Request) Since() string {
	months := r.Months
	if months < 1 {
		months = data.InteractionAgeMonthsDefault
	}
	return time.Now().UTC().AddDate(0, -months, 0).Format("2006-01-02")
}

// Scorer contributes partial scores for candidate items under its name.
// Scorers run concurrently against the same accumulator.
type Scorer interface {
	Name() string
	Score(ctx context.Context, db *sql.DB, req Request, acc *Accumulator) error
}

// Accumulator holds one composite score per candidate item. The candidate
// set is fixed at creation, only the scores themselves change, so any
// number of scorer goroutines can contribute without locking.
type Accumulator struct {
	scores map[string]*score.Score
}

// NewAccumulator creates an accumulator with a fresh zero score for every
// candidate.
func NewAccumulator(candidates []string) *Accumulator {
	m := make(map[string]*score.Score, len(candidates))
	for _, c := range candidates {
		m[c] = score.New()
	}
	return &Accumulator{scores: m}
}

// Add records a named partial score for the given item. Contributions for
// items outside the candidate set are dropped, the item was filtered out
// of this run.
func (a *Accumulator) Add(item, name string, points int64) error {
	s, ok := a.scores[item]
	if !ok {
		return nil
	}
	return s.Add(name, points)
}

// Scores returns the per-candidate composite scores.
func (a *Accumulator) Scores() map[string]*score.Score {
	return a.scores
}

// Pipeline runs a set of scorers over the candidate items of a request.
type Pipeline struct {
	scorers []Scorer
}

func New(scorers ...Scorer) *Pipeline {
	return &Pipeline{scorers: scorers}
}

// Run builds the candidate set for req.User and fans out every scorer on
// its own goroutine, all contributing into one shared accumulator. The
// first scorer error cancels the rest.
func (p *Pipeline) Run(ctx context.Context, db *sql.DB, req Request) (map[string]*score.Score, error) {
	if req.User == "" {
		return nil, fmt.Errorf("request user is required")
	}

	candidates, err := data.GetCandidateItems(db, req.User)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate items for %s: %w", req.User, err)
	}

	acc := NewAccumulator(candidates)

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range p.scorers {
		g.Go(func() error {
			if err := s.Score(ctx, db, req, acc); err != nil {
				return fmt.Errorf("scorer %s: %w", s.Name(), err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return acc.Scores(), nil
}

// Blend folds src into dst item by item, merging composite scores for
// shared candidates and copying the rest. Used to union runs computed for
// different users into one ranked set. dst is returned for chaining.
func Blend(dst, src map[string]*score.Score) map[string]*score.Score {
	for item, s := range src {
		if d, ok := dst[item]; ok {
			d.Merge(s)
			continue
		}
		// copy so later merges into dst never touch src
		dst[item] = score.New().Merge(s)
	}
	return dst
}

// Ranked is one ordered recommendation with its score breakdown.
type Ranked struct {
	Item  string           `json:"item" yaml:"item"`
	Total int64            `json:"total" yaml:"total"`
	Parts map[string]int64 `json:"parts,omitempty" yaml:"parts,omitempty"`
}

// Rank orders candidates by composite score, highest total first. The
// score itself only compares totals, so equal totals get the documented
// external tie-break: ascending item ID.
func Rank(scores map[string]*score.Score, limit int) []*Ranked {
	items := make([]string, 0, len(scores))
	for item := range scores {
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if c := scores[items[i]].Compare(scores[items[j]]); c != 0 {
			return c > 0
		}
		return items[i] < items[j]
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	ranked := make([]*Ranked, 0, len(items))
	for _, item := range items {
		s := scores[item]
		ranked = append(ranked, &Ranked{
			Item:  item,
			Total: s.Total(),
			Parts: s.Parts(),
		})
	}

	return ranked
}

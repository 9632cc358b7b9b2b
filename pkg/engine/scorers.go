package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recolab/reco/pkg/data"
)

const (
	// Partial score names, visible to callers in the breakdown.
	ScorePopularity string = "popularity"
	ScoreCoVisit    string = "co-visit"
	ScoreAffinity   string = "category-affinity"
	ScoreRecency    string = "recency-boost"

	coVisitSeedLimit = 20
	recencyHorizon   = 90 // days
)

// Popularity scores candidates by their global interaction count inside
// the request window.
type Popularity struct {
	weight int64
}

func NewPopularity(weight int64) *Popularity {
	return &Popularity{weight: weight}
}

func (p *Popularity) Name() string {
	return ScorePopularity
}

func (p *Popularity) Score(ctx context.Context, db *sql.DB, req Request, acc *Accumulator) error {
	counts, err := data.GetItemPopularity(db, req.Since())
	if err != nil {
		return fmt.Errorf("failed to get item popularity: %w", err)
	}

	for item, n := range counts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := acc.Add(item, p.Name(), n*p.weight); err != nil {
			return err
		}
	}

	return nil
}

// CoVisit scores candidates by how often other users touched them together
// with the items the user touched recently. One goroutine per seed item,
// all contributing under the same score name.
type CoVisit struct {
	weight int64
}

func NewCoVisit(weight int64) *CoVisit {
	return &CoVisit{weight: weight}
}

func (c *CoVisit) Name() string {
	return ScoreCoVisit
}

func (c *CoVisit) Score(ctx context.Context, db *sql.DB, req Request, acc *Accumulator) error {
	seeds, err := data.GetUserItems(db, req.User, coVisitSeedLimit)
	if err != nil {
		return fmt.Errorf("failed to get seed items for %s: %w", req.User, err)
	}

	since := req.Since()

	g, ctx := errgroup.WithContext(ctx)
	for _, seed := range seeds {
		g.Go(func() error {
			counts, err := data.GetCoVisitation(db, seed, since)
			if err != nil {
				return fmt.Errorf("failed to get co-visitation for %s: %w", seed, err)
			}
			for item, n := range counts {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := acc.Add(item, c.Name(), n*c.weight); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// Affinity scores candidates in the categories the user favors, in
// proportion to how often the user touched each category.
type Affinity struct {
	weight int64
}

func NewAffinity(weight int64) *Affinity {
	return &Affinity{weight: weight}
}

func (a *Affinity) Name() string {
	return ScoreAffinity
}

func (a *Affinity) Score(ctx context.Context, db *sql.DB, req Request, acc *Accumulator) error {
	counts, err := data.GetUserCategoryCounts(db, req.User, req.Since())
	if err != nil {
		return fmt.Errorf("failed to get category counts for %s: %w", req.User, err)
	}

	for category, n := range counts {
		if err := ctx.Err(); err != nil {
			return err
		}

		items, err := data.GetCategoryItems(db, category)
		if err != nil {
			return fmt.Errorf("failed to get items in category %s: %w", category, err)
		}

		for _, item := range items {
			if err := acc.Add(item, a.Name(), n*a.weight); err != nil {
				return err
			}
		}
	}

	return nil
}

// Recency boosts recently added items, one point per week still left on
// the horizon. Items older than the horizon contribute nothing.
type Recency struct {
	weight int64
	now    func() time.Time
}

func NewRecency(weight int64) *Recency {
	return &Recency{weight: weight, now: time.Now}
}

func (r *Recency) Name() string {
	return ScoreRecency
}

func (r *Recency) Score(ctx context.Context, db *sql.DB, req Request, acc *Accumulator) error {
	dates, err := data.GetItemAddedDates(db)
	if err != nil {
		return fmt.Errorf("failed to get item dates: %w", err)
	}

	now := r.now().UTC()

	for item, added := range dates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if added == "" {
			continue
		}

		t, parseErr := time.Parse("2006-01-02", added)
		if parseErr != nil {
			continue
		}

		ageDays := int64(now.Sub(t).Hours() / 24)
		left := recencyHorizon - ageDays
		if left <= 0 {
			continue
		}

		if err := acc.Add(item, r.Name(), r.weight*(left/7+1)); err != nil {
			return err
		}
	}

	return nil
}

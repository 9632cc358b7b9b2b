package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/recolab/reco/pkg/config"
	"github.com/recolab/reco/pkg/data"
	"github.com/recolab/reco/pkg/engine"
	"github.com/recolab/reco/pkg/score"
)

var (
	userFlag = &cli.StringSliceFlag{
		Name:  "user",
		Usage: "User to recommend for (repeat to blend multiple users)",
	}

	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "Max number of recommendations returned (default from config)",
	}

	saveFlag = &cli.BoolFlag{
		Name:  "save",
		Usage: "Persist the ranked results",
	}

	recommendCmd = &cli.Command{
		Name:    "recommend",
		Aliases: []string{"rec"},
		Usage:   "Score and rank candidate items for one or more users",
		UsageText: `reco recommend --user alice
   reco recommend --user alice --user bob --limit 5   # blended household run
   reco recommend --user alice --save`,
		Action: cmdRecommend,
		Flags: []cli.Flag{
			userFlag,
			limitFlag,
			saveFlag,
		},
	}
)

type RecommendResult struct {
	Users           []string         `json:"users" yaml:"users"`
	Count           int              `json:"count" yaml:"count"`
	Duration        string           `json:"duration" yaml:"duration"`
	Recommendations []*engine.Ranked `json:"recommendations" yaml:"recommendations"`
}

func cmdRecommend(c *cli.Context) error {
	start := time.Now()
	users := c.StringSlice(userFlag.Name)

	if len(users) == 0 {
		return cli.ShowSubcommandHelp(c)
	}

	cfg := getConfig(c)

	limit := c.Int(limitFlag.Name)
	if limit < 1 {
		limit = cfg.Conf.Limit
	}

	ranked, err := recommend(context.Background(), cfg, users, limit)
	if err != nil {
		return err
	}

	if c.Bool(saveFlag.Name) {
		key := strings.Join(users, "+")
		recs := make([]*data.Recommendation, 0, len(ranked))
		for _, r := range ranked {
			recs = append(recs, &data.Recommendation{Item: r.Item, Total: r.Total, Parts: r.Parts})
		}
		if err := data.SaveRecommendations(cfg.DB, key, recs); err != nil {
			return fmt.Errorf("failed to save recommendations for %s: %w", key, err)
		}
		slog.Info("recommendations saved", "user", key, "count", len(recs))
	}

	res := &RecommendResult{
		Users:           users,
		Count:           len(ranked),
		Duration:        time.Since(start).String(),
		Recommendations: ranked,
	}

	if err := getEncoder().Encode(res); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}

	return nil
}

// recommend runs the configured pipeline per user, blends the results,
// and ranks them.
func recommend(ctx context.Context, cfg *appConfig, users []string, limit int) ([]*engine.Ranked, error) {
	p := buildPipeline(cfg.Conf)

	var combined map[string]*score.Score
	for _, u := range users {
		scores, err := p.Run(ctx, cfg.DB, engine.Request{User: u, Months: cfg.Conf.Months})
		if err != nil {
			return nil, fmt.Errorf("failed to score candidates for %s: %w", u, err)
		}
		if combined == nil {
			combined = scores
			continue
		}
		combined = engine.Blend(combined, scores)
	}

	return engine.Rank(combined, limit), nil
}

func buildPipeline(conf *config.Config) *engine.Pipeline {
	scorers := make([]engine.Scorer, 0, len(conf.Engines))

	for name, e := range conf.Engines {
		if !e.Enabled {
			continue
		}
		w := e.Weight
		if w < 1 {
			w = 1
		}
		switch name {
		case engine.ScorePopularity:
			scorers = append(scorers, engine.NewPopularity(w))
		case engine.ScoreCoVisit:
			scorers = append(scorers, engine.NewCoVisit(w))
		case engine.ScoreAffinity:
			scorers = append(scorers, engine.NewAffinity(w))
		case engine.ScoreRecency:
			scorers = append(scorers, engine.NewRecency(w))
		default:
			slog.Warn("unknown engine in config", "name", name)
		}
	}

	return engine.New(scorers...)
}

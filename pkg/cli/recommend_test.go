package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recolab/reco/pkg/config"
)

func TestBuildPipeline(t *testing.T) {
	conf := &config.Config{
		Engines: map[string]config.Engine{
			"popularity":        {Enabled: true, Weight: 1},
			"co-visit":          {Enabled: true, Weight: 2},
			"category-affinity": {Enabled: false, Weight: 1},
			"recency-boost":     {Enabled: true, Weight: 0},
			"mystery":           {Enabled: true, Weight: 1},
		},
	}

	p := buildPipeline(conf)
	require.NotNil(t, p)
}

func TestRecommend(t *testing.T) {
	cfg := setupAppConfig(t)
	seedAppDB(t, cfg.DB)

	ranked, err := recommend(context.Background(), cfg, []string{"alice"}, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	for _, r := range ranked {
		var sum int64
		for _, v := range r.Parts {
			sum += v
		}
		assert.Equal(t, r.Total, sum)
	}
}

func TestRecommend_Blended(t *testing.T) {
	cfg := setupAppConfig(t)
	seedAppDB(t, cfg.DB)

	single, err := recommend(context.Background(), cfg, []string{"alice"}, 0)
	require.NoError(t, err)

	blended, err := recommend(context.Background(), cfg, []string{"alice", "bob"}, 0)
	require.NoError(t, err)

	// bob's run adds his candidates to the union
	assert.GreaterOrEqual(t, len(blended), len(single))
}

func TestRecommend_NoInteractions(t *testing.T) {
	cfg := setupAppConfig(t)
	seedAppDB(t, cfg.DB)

	// a user with no history gets every item as a candidate
	ranked, err := recommend(context.Background(), cfg, []string{"stranger"}, 0)
	require.NoError(t, err)
	assert.Len(t, ranked, 3)
}

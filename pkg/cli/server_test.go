package cli

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recolab/reco/pkg/config"
	"github.com/recolab/reco/pkg/data"
)

func setupAppConfig(t *testing.T) *appConfig {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, data.Init(dbPath))

	db, err := data.GetDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conf, err := config.ReadOrCreate(t.TempDir())
	require.NoError(t, err)

	return &appConfig{DBPath: dbPath, DB: db, Conf: conf}
}

func seedAppDB(t *testing.T, db *sql.DB) {
	t.Helper()

	today := time.Now().UTC().Format("2006-01-02")

	items := []*data.Item{
		{ID: "i1", Title: "Seed", Category: "books", Added: "2020-01-01"},
		{ID: "i2", Title: "CoVisited", Category: "books", Added: "2020-01-01"},
		{ID: "i3", Title: "Other", Category: "music", Added: today},
	}
	require.NoError(t, data.SaveItems(db, items))

	ints := []*data.Interaction{
		{User: "alice", Item: "i1", Kind: data.InteractionView, Date: today},
		{User: "bob", Item: "i1", Kind: data.InteractionView, Date: today},
		{User: "bob", Item: "i2", Kind: data.InteractionClick, Date: today},
	}
	require.NoError(t, data.SaveInteractions(db, ints))
}

func TestWithAuth_NoKey(t *testing.T) {
	h := withAuth("", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWithAuth_Key(t *testing.T) {
	h := withAuth("secret", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// no token
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// wrong token
	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/stats", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	h(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// right token
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/stats", nil)
	r.Header.Set("Authorization", "Bearer secret")
	h(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQueryParamInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?limit=5&bad=abc&zero=0", nil)

	assert.Equal(t, 5, queryParamInt(r, "limit", 10))
	assert.Equal(t, 10, queryParamInt(r, "bad", 10))
	assert.Equal(t, 10, queryParamInt(r, "zero", 10))
	assert.Equal(t, 10, queryParamInt(r, "missing", 10))
}

func TestRecommendAPIHandler(t *testing.T) {
	cfg := setupAppConfig(t)
	seedAppDB(t, cfg.DB)

	h := recommendAPIHandler(cfg)

	// missing user
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/recommend", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// alice saw i1, so i2 and i3 are candidates
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/recommend?user=alice", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res RecommendResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, []string{"alice"}, res.Users)
	assert.Equal(t, 2, res.Count)
	assert.NotEmpty(t, res.Duration)
	for _, r := range res.Recommendations {
		assert.NotEmpty(t, r.Item)
		assert.NotEmpty(t, r.Parts)
	}
}

func TestRecommendAPIHandler_Blended(t *testing.T) {
	cfg := setupAppConfig(t)
	seedAppDB(t, cfg.DB)

	h := recommendAPIHandler(cfg)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/recommend?user=alice&user=bob&limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res RecommendResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, []string{"alice", "bob"}, res.Users)
	assert.Equal(t, 1, res.Count)
}

func TestItemSearchAPIHandler(t *testing.T) {
	cfg := setupAppConfig(t)
	seedAppDB(t, cfg.DB)

	h := itemSearchAPIHandler(cfg.DB)

	// missing q
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/items/search", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/items/search?q=books", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list []*data.Item
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Len(t, list, 2)
}

func TestStatsAPIHandler(t *testing.T) {
	cfg := setupAppConfig(t)
	seedAppDB(t, cfg.DB)

	h := statsAPIHandler(cfg.DB)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var s Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&s))
	assert.Equal(t, int64(3), s.Items)
	assert.Equal(t, int64(3), s.Interactions)
	assert.Equal(t, int64(2), s.Users)
	assert.Equal(t, int64(2), s.Kinds[data.InteractionView])
}

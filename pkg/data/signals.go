package data

import (
	"database/sql"
	"errors"
	"fmt"
)

const (
	// Popularity: raw interaction counts per item inside the window.
	selectItemPopularitySQL = `SELECT item_id, COUNT(*) AS cnt
		FROM interaction
		WHERE date >= ?
		GROUP BY item_id
	`

	// Co-visitation: for a seed item, count distinct users who touched both
	// the seed and the other item inside the window. The classic
	// item-to-item collaborative filtering signal.
	selectCoVisitationSQL = `SELECT b.item_id, COUNT(DISTINCT b.user_id) AS cnt
		FROM interaction a
		JOIN interaction b ON a.user_id = b.user_id AND b.item_id != a.item_id
		WHERE a.item_id = ?
		  AND a.date >= ?
		  AND b.date >= ?
		GROUP BY b.item_id
	`

	// Category affinity: how often the user touched each category.
	selectUserCategoryCountsSQL = `SELECT i.category, COUNT(*) AS cnt
		FROM interaction n
		JOIN item i ON n.item_id = i.id
		WHERE n.user_id = ?
		  AND n.date >= ?
		  AND i.category IS NOT NULL AND i.category != ''
		GROUP BY i.category
	`
)

// GetItemPopularity returns interaction counts per item since the given date.
func GetItemPopularity(db *sql.DB, since string) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	return getCountMap(db, selectItemPopularitySQL, since)
}

// GetCoVisitation returns, for every other item, the number of distinct
// users who interacted with both it and the seed item since the given date.
func GetCoVisitation(db *sql.DB, seed, since string) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	return getCountMap(db, selectCoVisitationSQL, seed, since, since)
}

// GetUserCategoryCounts returns the user's interaction counts per item
// category since the given date.
func GetUserCategoryCounts(db *sql.DB, user, since string) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	return getCountMap(db, selectUserCategoryCountsSQL, user, since)
}

func getCountMap(db *sql.DB, sqlQuery string, args ...any) (map[string]int64, error) {
	rows, err := db.Query(sqlQuery, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to execute count query: %w", err)
	}
	defer rows.Close()

	m := make(map[string]int64)
	for rows.Next() {
		var key string
		var cnt int64
		if err := rows.Scan(&key, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		m[key] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return m, nil
}

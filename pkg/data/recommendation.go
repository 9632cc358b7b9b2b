package data

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	insertRecommendationSQL = `INSERT INTO recommendation (
			user_id,
			item_id,
			total,
			parts,
			created_at
		)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, item_id, created_at) DO NOTHING
	`

	selectRecommendationsSQL = `SELECT item_id, total, parts, created_at
		FROM recommendation
		WHERE user_id = ?
		  AND created_at = (
			SELECT MAX(created_at) FROM recommendation WHERE user_id = ?
		  )
		ORDER BY total DESC, item_id ASC
		LIMIT ?
	`
)

// Recommendation is one ranked item from a persisted run, with the
// per-engine score breakdown kept for explainability.
type Recommendation struct {
	Item    string           `json:"item" yaml:"item"`
	Total   int64            `json:"total" yaml:"total"`
	Parts   map[string]int64 `json:"parts,omitempty" yaml:"parts,omitempty"`
	Created string           `json:"created,omitempty" yaml:"created,omitempty"`
}

// SaveRecommendations persists a ranked run for the given user. All rows
// share one created_at stamp so the latest run can be read back as a unit.
func SaveRecommendations(db *sql.DB, user string, recs []*Recommendation) error {
	if db == nil {
		return errDBNotInitialized
	}

	if user == "" {
		return errors.New("user is required")
	}

	if len(recs) == 0 {
		return nil
	}

	now := time.Now().UTC().Format("2006-01-02T15:04:05Z")

	stmt, err := db.Prepare(insertRecommendationSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare recommendation insert statement: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for i, r := range recs {
		var partsJSON *string
		if len(r.Parts) > 0 {
			b, err := json.Marshal(r.Parts)
			if err != nil {
				rollbackTransaction(tx)
				return fmt.Errorf("failed to marshal parts for %s: %w", r.Item, err)
			}
			s := string(b)
			partsJSON = &s
		}

		if _, err = tx.Stmt(stmt).Exec(user, r.Item, r.Total, partsJSON, now); err != nil {
			rollbackTransaction(tx)
			return fmt.Errorf("error inserting recommendation[%d]: %s: %w", i, r.Item, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetRecommendations returns the user's most recently persisted run.
func GetRecommendations(db *sql.DB, user string, limit int) ([]*Recommendation, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectRecommendationsSQL, user, user, limit)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	list := make([]*Recommendation, 0)
	for rows.Next() {
		r := &Recommendation{}
		var partsJSON sql.NullString
		if err := rows.Scan(&r.Item, &r.Total, &partsJSON, &r.Created); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if partsJSON.Valid && partsJSON.String != "" {
			if err := json.Unmarshal([]byte(partsJSON.String), &r.Parts); err != nil {
				return nil, fmt.Errorf("failed to unmarshal parts for %s: %w", r.Item, err)
			}
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return list, nil
}

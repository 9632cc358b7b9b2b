package data

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

const (
	InteractionView     string = "view"
	InteractionClick    string = "click"
	InteractionSave     string = "save"
	InteractionPurchase string = "purchase"

	// InteractionAgeMonthsDefault is how far back the engines look.
	InteractionAgeMonthsDefault = 6

	insertInteractionSQL = `INSERT INTO interaction (
			user_id,
			item_id,
			kind,
			date
		)
		VALUES (?, ?, ?, ?)
	`

	selectUserItemsSQL = `SELECT item_id, MAX(date) AS last_date
		FROM interaction
		WHERE user_id = ?
		GROUP BY item_id
		ORDER BY last_date DESC
		LIMIT ?
	`

	selectUserInteractionsSQL = `SELECT
			user_id,
			item_id,
			kind,
			date
		FROM interaction
		WHERE user_id = ?
		ORDER BY date DESC
		LIMIT ?
	`

	countInteractionKindsSQL = `SELECT kind, COUNT(*) AS cnt
		FROM interaction
		GROUP BY kind
	`

	countInteractionsSQL = `SELECT COUNT(*) FROM interaction`

	countUsersSQL = `SELECT COUNT(DISTINCT user_id) FROM interaction`
)

// Interaction is a single user event against an item.
type Interaction struct {
	User string `json:"user" yaml:"user"`
	Item string `json:"item" yaml:"item"`
	Kind string `json:"kind" yaml:"kind"`
	Date string `json:"date" yaml:"date"`
}

// InteractionKinds lists the event kinds the importer accepts.
var InteractionKinds = []string{
	InteractionView,
	InteractionClick,
	InteractionSave,
	InteractionPurchase,
}

// SaveInteractions appends the given interactions in a single transaction.
func SaveInteractions(db *sql.DB, list []*Interaction) error {
	if db == nil {
		return errDBNotInitialized
	}

	if len(list) == 0 {
		return nil
	}

	stmt, err := db.Prepare(insertInteractionSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare interaction insert statement: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for i, n := range list {
		if n.User == "" || n.Item == "" {
			rollbackTransaction(tx)
			return fmt.Errorf("interaction[%d] missing user or item", i)
		}
		if _, err = tx.Stmt(stmt).Exec(n.User, n.Item, n.Kind, n.Date); err != nil {
			slog.Error("failed to insert interaction",
				"index", i,
				"user", n.User,
				"item", n.Item,
				"error", err,
			)
			rollbackTransaction(tx)
			return fmt.Errorf("error inserting interaction[%d]: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetUserItems returns the IDs of items the user touched most recently.
func GetUserItems(db *sql.DB, user string, limit int) ([]string, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectUserItemsSQL, user, limit)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query user items: %w", err)
	}
	defer rows.Close()

	list := make([]string, 0)
	for rows.Next() {
		var id, last string
		if err := rows.Scan(&id, &last); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return list, nil
}

// GetUserInteractions returns the user's most recent interactions.
func GetUserInteractions(db *sql.DB, user string, limit int) ([]*Interaction, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectUserInteractionsSQL, user, limit)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query user interactions: %w", err)
	}
	defer rows.Close()

	list := make([]*Interaction, 0)
	for rows.Next() {
		n := &Interaction{}
		if err := rows.Scan(&n.User, &n.Item, &n.Kind, &n.Date); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return list, nil
}

// CountInteractionKinds returns interaction counts grouped by kind.
func CountInteractionKinds(db *sql.DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(countInteractionKindsSQL)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to count interaction kinds: %w", err)
	}
	defer rows.Close()

	m := make(map[string]int64)
	for rows.Next() {
		var kind string
		var cnt int64
		if err := rows.Scan(&kind, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		m[kind] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return m, nil
}

func CountInteractions(db *sql.DB) (int64, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}

	var n int64
	if err := db.QueryRow(countInteractionsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return n, nil
}

func CountUsers(db *sql.DB) (int64, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}

	var n int64
	if err := db.QueryRow(countUsersSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

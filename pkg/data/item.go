package data

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

const (
	insertItemSQL = `INSERT INTO item (
			id,
			title,
			category,
			added_date
		)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = ?,
			category = ?,
			added_date = ?
	`

	selectItemSQL = `SELECT
			id,
			COALESCE(title, '') AS title,
			COALESCE(category, '') AS category,
			COALESCE(added_date, '') AS added_date
		FROM item
		WHERE id = ?
	`

	queryItemSQL = `SELECT
			id,
			COALESCE(title, '') AS title,
			COALESCE(category, '') AS category,
			COALESCE(added_date, '') AS added_date
		FROM item
		WHERE id LIKE ?
		OR title LIKE ?
		OR category LIKE ?
		ORDER BY id
		LIMIT ?
	`

	selectCandidateItemSQL = `SELECT id FROM item
		WHERE id NOT IN (
			SELECT DISTINCT item_id FROM interaction WHERE user_id = ?
		)
	`

	selectItemAddedDatesSQL = `SELECT id, COALESCE(added_date, '') FROM item`

	selectCategoryItemsSQL = `SELECT id FROM item WHERE category = ?`

	countItemsSQL = `SELECT COUNT(*) FROM item`
)

// Item is a single recommendable thing (product, article, track).
type Item struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Added    string `json:"added,omitempty" yaml:"added,omitempty"`
}

// SaveItems upserts the given items in a single transaction.
func SaveItems(db *sql.DB, items []*Item) error {
	if db == nil {
		return errDBNotInitialized
	}

	if len(items) == 0 {
		return nil
	}

	stmt, err := db.Prepare(insertItemSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert statement: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for i, it := range items {
		if it.ID == "" {
			rollbackTransaction(tx)
			return fmt.Errorf("item[%d] has no id", i)
		}
		if _, err = tx.Stmt(stmt).Exec(it.ID,
			it.Title, it.Category, it.Added,
			it.Title, it.Category, it.Added); err != nil {
			slog.Error("failed to insert item", "index", i, "id", it.ID, "error", err)
			rollbackTransaction(tx)
			return fmt.Errorf("error inserting item[%d]: %s: %w", i, it.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func GetItem(db *sql.DB, id string) (*Item, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	row := db.QueryRow(selectItemSQL, id)

	it := &Item{}
	if err := row.Scan(&it.ID, &it.Title, &it.Category, &it.Added); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return it, nil
}

// SearchItems returns items matching the given value by id, title, or category.
func SearchItems(db *sql.DB, val string, limit int) ([]*Item, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	val = fmt.Sprintf("%%%s%%", val)
	rows, err := db.Query(queryItemSQL, val, val, val, limit)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to execute item query: %w", err)
	}
	defer rows.Close()

	list := make([]*Item, 0)
	for rows.Next() {
		it := &Item{}
		if err := rows.Scan(&it.ID, &it.Title, &it.Category, &it.Added); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return list, nil
}

// GetCandidateItems returns IDs of items the given user has not interacted
// with yet. This is the candidate set for a recommendation run.
func GetCandidateItems(db *sql.DB, user string) ([]string, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectCandidateItemSQL, user)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query candidate items: %w", err)
	}
	defer rows.Close()

	list := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return list, nil
}

// GetItemAddedDates returns the added date for every item, keyed by item ID.
func GetItemAddedDates(db *sql.DB) (map[string]string, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectItemAddedDatesSQL)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query item dates: %w", err)
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var id, added string
		if err := rows.Scan(&id, &added); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		m[id] = added
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return m, nil
}

// GetCategoryItems returns IDs of all items in the given category.
func GetCategoryItems(db *sql.DB, category string) ([]string, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectCategoryItemsSQL, category)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query category items: %w", err)
	}
	defer rows.Close()

	list := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return list, nil
}

func CountItems(db *sql.DB) (int64, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}

	var n int64
	if err := db.QueryRow(countItemsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

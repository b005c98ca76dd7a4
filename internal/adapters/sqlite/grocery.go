package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// PutGroceryList inserts or updates a grocery list.
func (s *Store) PutGroceryList(ctx context.Context, l snapshot.GroceryList) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grocery_lists (id, name, range_start, range_end, note)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			range_start = excluded.range_start,
			range_end = excluded.range_end,
			note = excluded.note`,
		l.ID, l.Name, l.Range.Start, l.Range.End, l.Note)
	if err != nil {
		return fmt.Errorf("failed to store grocery list %s: %w", l.ID, err)
	}
	return nil
}

// GetGroceryList returns the grocery list with the given id, or ErrNotFound.
func (s *Store) GetGroceryList(ctx context.Context, id string) (snapshot.GroceryList, error) {
	var l snapshot.GroceryList
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, range_start, range_end, note
		FROM grocery_lists WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &l.Range.Start, &l.Range.End, &l.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.GroceryList{}, ErrNotFound
	}
	if err != nil {
		return snapshot.GroceryList{}, fmt.Errorf("failed to load grocery list %s: %w", id, err)
	}
	return l, nil
}

// DeleteGroceryList removes a grocery list and its items.
func (s *Store) DeleteGroceryList(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM grocery_lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete grocery list %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM grocery_items WHERE list_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete items of grocery list %s: %w", id, err)
	}

	return tx.Commit()
}

// ListGroceryLists returns all grocery lists in insertion order.
func (s *Store) ListGroceryLists(ctx context.Context) ([]snapshot.GroceryList, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, range_start, range_end, note
		FROM grocery_lists ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list grocery lists: %w", err)
	}
	defer rows.Close()

	lists := []snapshot.GroceryList{}
	for rows.Next() {
		var l snapshot.GroceryList
		if err := rows.Scan(&l.ID, &l.Name, &l.Range.Start, &l.Range.End, &l.Note); err != nil {
			return nil, fmt.Errorf("failed to scan grocery list: %w", err)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

// PutGroceryItem inserts or updates a grocery item.
func (s *Store) PutGroceryItem(ctx context.Context, i snapshot.GroceryItem) error {
	_, err := s.db.ExecContext(ctx, groceryItemUpsert,
		i.ID, i.ListID, i.Name, i.Quantity, i.Unit, i.Category, i.Checked, i.SortOrder)
	if err != nil {
		return fmt.Errorf("failed to store grocery item %s: %w", i.ID, err)
	}
	return nil
}

// PutGroceryItems stores a batch of items in one transaction, for list
// generation.
func (s *Store) PutGroceryItems(ctx context.Context, items []snapshot.GroceryItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, i := range items {
		if _, err := tx.ExecContext(ctx, groceryItemUpsert,
			i.ID, i.ListID, i.Name, i.Quantity, i.Unit, i.Category, i.Checked, i.SortOrder); err != nil {
			return fmt.Errorf("failed to store grocery item %s: %w", i.ID, err)
		}
	}
	return tx.Commit()
}

// GetGroceryItem returns the grocery item with the given id, or ErrNotFound.
func (s *Store) GetGroceryItem(ctx context.Context, id string) (snapshot.GroceryItem, error) {
	var i snapshot.GroceryItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, list_id, name, quantity, unit, category, checked, sort_order
		FROM grocery_items WHERE id = ?`, id).
		Scan(&i.ID, &i.ListID, &i.Name, &i.Quantity, &i.Unit, &i.Category, &i.Checked, &i.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.GroceryItem{}, ErrNotFound
	}
	if err != nil {
		return snapshot.GroceryItem{}, fmt.Errorf("failed to load grocery item %s: %w", id, err)
	}
	return i, nil
}

// DeleteGroceryItem removes a grocery item.
func (s *Store) DeleteGroceryItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM grocery_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete grocery item %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListGroceryItems returns the items of one list ordered for shopping:
// sort_order, then insertion order.
func (s *Store) ListGroceryItems(ctx context.Context, listID string) ([]snapshot.GroceryItem, error) {
	return s.queryGroceryItems(ctx, `
		SELECT id, list_id, name, quantity, unit, category, checked, sort_order
		FROM grocery_items WHERE list_id = ? ORDER BY sort_order, rowid`, listID)
}

// listGroceryItems returns items in insertion order, all of them when listID
// is empty. Used for snapshot assembly.
func (s *Store) listGroceryItems(ctx context.Context, listID string) ([]snapshot.GroceryItem, error) {
	query := `SELECT id, list_id, name, quantity, unit, category, checked, sort_order FROM grocery_items`
	args := []any{}
	if listID != "" {
		query += ` WHERE list_id = ?`
		args = append(args, listID)
	}
	query += ` ORDER BY rowid`
	return s.queryGroceryItems(ctx, query, args...)
}

const groceryItemUpsert = `
	INSERT INTO grocery_items (id, list_id, name, quantity, unit, category, checked, sort_order)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		list_id = excluded.list_id,
		name = excluded.name,
		quantity = excluded.quantity,
		unit = excluded.unit,
		category = excluded.category,
		checked = excluded.checked,
		sort_order = excluded.sort_order`

func (s *Store) queryGroceryItems(ctx context.Context, query string, args ...any) ([]snapshot.GroceryItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grocery items: %w", err)
	}
	defer rows.Close()

	items := []snapshot.GroceryItem{}
	for rows.Next() {
		var i snapshot.GroceryItem
		if err := rows.Scan(&i.ID, &i.ListID, &i.Name, &i.Quantity, &i.Unit, &i.Category, &i.Checked, &i.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan grocery item: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

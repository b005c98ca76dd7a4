package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// PutMealPlan inserts or updates a meal plan entry.
func (s *Store) PutMealPlan(ctx context.Context, p snapshot.MealPlan) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meal_plans (id, date, slot, recipe_id, title, servings, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			slot = excluded.slot,
			recipe_id = excluded.recipe_id,
			title = excluded.title,
			servings = excluded.servings,
			note = excluded.note`,
		p.ID, p.Date, string(p.Slot), p.RecipeID, p.Title, p.Servings, p.Note)
	if err != nil {
		return fmt.Errorf("failed to store meal plan %s: %w", p.ID, err)
	}
	return nil
}

// GetMealPlan returns the meal plan entry with the given id, or ErrNotFound.
func (s *Store) GetMealPlan(ctx context.Context, id string) (snapshot.MealPlan, error) {
	var p snapshot.MealPlan
	var slot string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, date, slot, recipe_id, title, servings, note
		FROM meal_plans WHERE id = ?`, id).
		Scan(&p.ID, &p.Date, &slot, &p.RecipeID, &p.Title, &p.Servings, &p.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.MealPlan{}, ErrNotFound
	}
	if err != nil {
		return snapshot.MealPlan{}, fmt.Errorf("failed to load meal plan %s: %w", id, err)
	}
	p.Slot = snapshot.Slot(slot)
	return p, nil
}

// DeleteMealPlan removes a meal plan entry.
func (s *Store) DeleteMealPlan(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM meal_plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meal plan %s: %w", id, err)
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

// ListMealPlans returns meal plan entries, optionally restricted to the
// inclusive date range [from, to]. Dates are YYYY-MM-DD strings, so string
// comparison matches chronological order. Results are sorted by date, then
// insertion order.
func (s *Store) ListMealPlans(ctx context.Context, from, to string) ([]snapshot.MealPlan, error) {
	query := `SELECT id, date, slot, recipe_id, title, servings, note FROM meal_plans`
	args := []any{}
	switch {
	case from != "" && to != "":
		query += ` WHERE date >= ? AND date <= ?`
		args = append(args, from, to)
	case from != "":
		query += ` WHERE date >= ?`
		args = append(args, from)
	case to != "":
		query += ` WHERE date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date, rowid`

	return s.queryMealPlans(ctx, query, args...)
}

// allMealPlans returns every entry in insertion order, for snapshot assembly.
func (s *Store) allMealPlans(ctx context.Context) ([]snapshot.MealPlan, error) {
	return s.queryMealPlans(ctx,
		`SELECT id, date, slot, recipe_id, title, servings, note FROM meal_plans ORDER BY rowid`)
}

func (s *Store) queryMealPlans(ctx context.Context, query string, args ...any) ([]snapshot.MealPlan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal plans: %w", err)
	}
	defer rows.Close()

	plans := []snapshot.MealPlan{}
	for rows.Next() {
		var p snapshot.MealPlan
		var slot string
		if err := rows.Scan(&p.ID, &p.Date, &slot, &p.RecipeID, &p.Title, &p.Servings, &p.Note); err != nil {
			return nil, fmt.Errorf("failed to scan meal plan: %w", err)
		}
		p.Slot = snapshot.Slot(slot)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// LoadSnapshot assembles the full working snapshot from the entity tables.
// Collection order follows insertion order so a load/replace round trip is
// stable.
func (s *Store) LoadSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	snap := snapshot.New()

	recipes, err := s.ListRecipes(ctx)
	if err != nil {
		return nil, err
	}
	snap.Recipes = recipes

	ingredients, err := s.listIngredients(ctx, "")
	if err != nil {
		return nil, err
	}
	snap.Ingredients = ingredients

	plans, err := s.allMealPlans(ctx)
	if err != nil {
		return nil, err
	}
	snap.MealPlans = plans

	lists, err := s.ListGroceryLists(ctx)
	if err != nil {
		return nil, err
	}
	snap.GroceryLists = lists

	items, err := s.listGroceryItems(ctx, "")
	if err != nil {
		return nil, err
	}
	snap.GroceryItems = items

	stamp, err := s.LastModified(ctx)
	if err != nil {
		return nil, err
	}
	snap.LastModified = stamp

	version, err := s.formatVersion(ctx)
	if err != nil {
		return nil, err
	}
	snap.Version = version

	snap.Normalize()
	return snap, nil
}

// ReplaceSnapshot swaps the entire working snapshot in one transaction. Used
// after a merge so readers never see a half-applied result.
func (s *Store) ReplaceSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"recipes", "ingredients", "meal_plans", "grocery_lists", "grocery_items"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, r := range snap.Recipes {
		if err := insertRecipeTx(ctx, tx, r); err != nil {
			return err
		}
	}
	for _, i := range snap.Ingredients {
		if err := insertIngredientTx(ctx, tx, i); err != nil {
			return err
		}
	}
	for _, p := range snap.MealPlans {
		if err := insertMealPlanTx(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, l := range snap.GroceryLists {
		if err := insertGroceryListTx(ctx, tx, l); err != nil {
			return err
		}
	}
	for _, i := range snap.GroceryItems {
		if err := insertGroceryItemTx(ctx, tx, i); err != nil {
			return err
		}
	}

	stamp, _ := json.Marshal(snap.LastModified)
	if err := s.setStateTx(ctx, tx, stateLastModified, stamp); err != nil {
		return err
	}
	version, _ := json.Marshal(snap.Version)
	if err := s.setStateTx(ctx, tx, stateVersion, version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (s *Store) formatVersion(ctx context.Context) (int, error) {
	value, err := s.getState(ctx, stateVersion)
	if err != nil {
		if err == ErrNotFound {
			return snapshot.FormatVersion, nil
		}
		return 0, err
	}

	var version int
	if err := json.Unmarshal(value, &version); err != nil {
		return 0, fmt.Errorf("corrupt version state: %w", err)
	}
	return version, nil
}

func insertRecipeTx(ctx context.Context, tx *sql.Tx, r snapshot.Recipe) error {
	instructions, tags, err := marshalRecipeLists(r)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO recipes (id, name, description, servings, prep_minutes, cook_minutes, instructions, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Description, r.Servings, r.PrepMinutes, r.CookMinutes, instructions, tags)
	if err != nil {
		return fmt.Errorf("failed to insert recipe %s: %w", r.ID, err)
	}
	return nil
}

func insertIngredientTx(ctx context.Context, tx *sql.Tx, i snapshot.Ingredient) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ingredients (id, recipe_id, name, quantity, unit, note, optional)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.RecipeID, i.Name, i.Quantity, i.Unit, i.Note, i.Optional)
	if err != nil {
		return fmt.Errorf("failed to insert ingredient %s: %w", i.ID, err)
	}
	return nil
}

func insertMealPlanTx(ctx context.Context, tx *sql.Tx, p snapshot.MealPlan) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meal_plans (id, date, slot, recipe_id, title, servings, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Date, string(p.Slot), p.RecipeID, p.Title, p.Servings, p.Note)
	if err != nil {
		return fmt.Errorf("failed to insert meal plan %s: %w", p.ID, err)
	}
	return nil
}

func insertGroceryListTx(ctx context.Context, tx *sql.Tx, l snapshot.GroceryList) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO grocery_lists (id, name, range_start, range_end, note)
		VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Range.Start, l.Range.End, l.Note)
	if err != nil {
		return fmt.Errorf("failed to insert grocery list %s: %w", l.ID, err)
	}
	return nil
}

func insertGroceryItemTx(ctx context.Context, tx *sql.Tx, i snapshot.GroceryItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO grocery_items (id, list_id, name, quantity, unit, category, checked, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.ListID, i.Name, i.Quantity, i.Unit, i.Category, i.Checked, i.SortOrder)
	if err != nil {
		return fmt.Errorf("failed to insert grocery item %s: %w", i.ID, err)
	}
	return nil
}

func marshalRecipeLists(r snapshot.Recipe) (instructions, tags string, err error) {
	ins := r.Instructions
	if ins == nil {
		ins = []string{}
	}
	insJSON, err := json.Marshal(ins)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal instructions for %s: %w", r.ID, err)
	}

	tg := r.Tags
	if tg == nil {
		tg = []string{}
	}
	tagJSON, err := json.Marshal(tg)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal tags for %s: %w", r.ID, err)
	}
	return string(insJSON), string(tagJSON), nil
}

func unmarshalRecipeLists(r *snapshot.Recipe, instructions, tags string) error {
	if err := json.Unmarshal([]byte(instructions), &r.Instructions); err != nil {
		return fmt.Errorf("corrupt instructions for recipe %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return fmt.Errorf("corrupt tags for recipe %s: %w", r.ID, err)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// PutRecipe inserts or updates a recipe.
func (s *Store) PutRecipe(ctx context.Context, r snapshot.Recipe) error {
	instructions, tags, err := marshalRecipeLists(r)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recipes (id, name, description, servings, prep_minutes, cook_minutes, instructions, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			servings = excluded.servings,
			prep_minutes = excluded.prep_minutes,
			cook_minutes = excluded.cook_minutes,
			instructions = excluded.instructions,
			tags = excluded.tags`,
		r.ID, r.Name, r.Description, r.Servings, r.PrepMinutes, r.CookMinutes, instructions, tags)
	if err != nil {
		return fmt.Errorf("failed to store recipe %s: %w", r.ID, err)
	}
	return nil
}

// GetRecipe returns the recipe with the given id, or ErrNotFound.
func (s *Store) GetRecipe(ctx context.Context, id string) (snapshot.Recipe, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, servings, prep_minutes, cook_minutes, instructions, tags
		FROM recipes WHERE id = ?`, id)

	recipe, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.Recipe{}, ErrNotFound
	}
	if err != nil {
		return snapshot.Recipe{}, fmt.Errorf("failed to load recipe %s: %w", id, err)
	}
	return recipe, nil
}

// DeleteRecipe removes a recipe and its ingredients. Returns ErrNotFound when
// the recipe does not exist.
func (s *Store) DeleteRecipe(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recipe %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ingredients WHERE recipe_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete ingredients of recipe %s: %w", id, err)
	}

	return tx.Commit()
}

// ListRecipes returns all recipes in insertion order.
func (s *Store) ListRecipes(ctx context.Context) ([]snapshot.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, servings, prep_minutes, cook_minutes, instructions, tags
		FROM recipes ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []snapshot.Recipe{}
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, recipe)
	}
	return recipes, rows.Err()
}

// PutIngredient inserts or updates an ingredient.
func (s *Store) PutIngredient(ctx context.Context, i snapshot.Ingredient) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingredients (id, recipe_id, name, quantity, unit, note, optional)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			recipe_id = excluded.recipe_id,
			name = excluded.name,
			quantity = excluded.quantity,
			unit = excluded.unit,
			note = excluded.note,
			optional = excluded.optional`,
		i.ID, i.RecipeID, i.Name, i.Quantity, i.Unit, i.Note, i.Optional)
	if err != nil {
		return fmt.Errorf("failed to store ingredient %s: %w", i.ID, err)
	}
	return nil
}

// DeleteIngredient removes an ingredient.
func (s *Store) DeleteIngredient(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ingredients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ingredient %s: %w", id, err)
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

// ListIngredients returns the ingredients of one recipe in insertion order.
func (s *Store) ListIngredients(ctx context.Context, recipeID string) ([]snapshot.Ingredient, error) {
	return s.listIngredients(ctx, recipeID)
}

// listIngredients returns ingredients, all of them when recipeID is empty.
func (s *Store) listIngredients(ctx context.Context, recipeID string) ([]snapshot.Ingredient, error) {
	query := `SELECT id, recipe_id, name, quantity, unit, note, optional FROM ingredients`
	args := []any{}
	if recipeID != "" {
		query += ` WHERE recipe_id = ?`
		args = append(args, recipeID)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	defer rows.Close()

	ingredients := []snapshot.Ingredient{}
	for rows.Next() {
		var i snapshot.Ingredient
		if err := rows.Scan(&i.ID, &i.RecipeID, &i.Name, &i.Quantity, &i.Unit, &i.Note, &i.Optional); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		ingredients = append(ingredients, i)
	}
	return ingredients, rows.Err()
}

// rowScanner lets scanRecipe work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(row rowScanner) (snapshot.Recipe, error) {
	var r snapshot.Recipe
	var instructions, tags string
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Servings, &r.PrepMinutes, &r.CookMinutes, &instructions, &tags); err != nil {
		return snapshot.Recipe{}, err
	}
	if err := unmarshalRecipeLists(&r, instructions, tags); err != nil {
		return snapshot.Recipe{}, err
	}
	return r, nil
}

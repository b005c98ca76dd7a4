// Package app provides the application services behind the CLI, agent, and
// MCP server: recipe and meal-plan management, grocery list generation, and
// snapshot sync against the shared blob.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/sous/internal/adapters/sqlite"
	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// Validation errors returned by the planner.
var (
	ErrEmptyName     = errors.New("name is required")
	ErrUnknownRecipe = errors.New("recipe not found")
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidSlot   = errors.New("invalid meal slot")
	ErrNoMeal        = errors.New("a recipe or a title is required")
)

// Planner manages recipes, ingredients, and the meal plan. Every mutation
// bumps the working snapshot's last-modified stamp so the next sync sees a
// local change.
type Planner struct {
	store *sqlite.Store
	now   func() time.Time
	newID func() string
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithPlannerClock overrides the clock, for tests.
func WithPlannerClock(now func() time.Time) PlannerOption {
	return func(p *Planner) {
		p.now = now
	}
}

// WithPlannerIDs overrides id generation, for tests.
func WithPlannerIDs(newID func() string) PlannerOption {
	return func(p *Planner) {
		p.newID = newID
	}
}

// NewPlanner creates a Planner backed by the local store.
func NewPlanner(store *sqlite.Store, opts ...PlannerOption) *Planner {
	p := &Planner{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RecipeDraft carries the user-provided fields of a new recipe.
type RecipeDraft struct {
	Name         string
	Description  string
	Servings     int
	PrepMinutes  int
	CookMinutes  int
	Instructions []string
	Tags         []string
}

// AddRecipe stores a new recipe and returns it with its generated id.
func (p *Planner) AddRecipe(ctx context.Context, draft RecipeDraft) (snapshot.Recipe, error) {
	if draft.Name == "" {
		return snapshot.Recipe{}, fmt.Errorf("recipe: %w", ErrEmptyName)
	}

	recipe := snapshot.Recipe{
		ID:           p.newID(),
		Name:         draft.Name,
		Description:  draft.Description,
		Servings:     draft.Servings,
		PrepMinutes:  draft.PrepMinutes,
		CookMinutes:  draft.CookMinutes,
		Instructions: draft.Instructions,
		Tags:         draft.Tags,
	}
	if err := p.store.PutRecipe(ctx, recipe); err != nil {
		return snapshot.Recipe{}, err
	}
	return recipe, p.touch(ctx)
}

// UpdateRecipe replaces an existing recipe.
func (p *Planner) UpdateRecipe(ctx context.Context, recipe snapshot.Recipe) error {
	if recipe.Name == "" {
		return fmt.Errorf("recipe: %w", ErrEmptyName)
	}
	if _, err := p.store.GetRecipe(ctx, recipe.ID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownRecipe, recipe.ID)
		}
		return err
	}
	if err := p.store.PutRecipe(ctx, recipe); err != nil {
		return err
	}
	return p.touch(ctx)
}

// RemoveRecipe deletes a recipe and its ingredients.
func (p *Planner) RemoveRecipe(ctx context.Context, id string) error {
	if err := p.store.DeleteRecipe(ctx, id); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownRecipe, id)
		}
		return err
	}
	return p.touch(ctx)
}

// Recipes returns all stored recipes.
func (p *Planner) Recipes(ctx context.Context) ([]snapshot.Recipe, error) {
	return p.store.ListRecipes(ctx)
}

// Recipe returns one recipe with its ingredients.
func (p *Planner) Recipe(ctx context.Context, id string) (snapshot.Recipe, []snapshot.Ingredient, error) {
	recipe, err := p.store.GetRecipe(ctx, id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return snapshot.Recipe{}, nil, fmt.Errorf("%w: %s", ErrUnknownRecipe, id)
		}
		return snapshot.Recipe{}, nil, err
	}

	ingredients, err := p.store.ListIngredients(ctx, id)
	if err != nil {
		return snapshot.Recipe{}, nil, err
	}
	return recipe, ingredients, nil
}

// IngredientDraft carries the user-provided fields of a new ingredient.
type IngredientDraft struct {
	Name     string
	Quantity float64
	Unit     string
	Note     string
	Optional bool
}

// AddIngredient attaches an ingredient to an existing recipe.
func (p *Planner) AddIngredient(ctx context.Context, recipeID string, draft IngredientDraft) (snapshot.Ingredient, error) {
	if draft.Name == "" {
		return snapshot.Ingredient{}, fmt.Errorf("ingredient: %w", ErrEmptyName)
	}
	if _, err := p.store.GetRecipe(ctx, recipeID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return snapshot.Ingredient{}, fmt.Errorf("%w: %s", ErrUnknownRecipe, recipeID)
		}
		return snapshot.Ingredient{}, err
	}

	ingredient := snapshot.Ingredient{
		ID:       p.newID(),
		RecipeID: recipeID,
		Name:     draft.Name,
		Quantity: draft.Quantity,
		Unit:     draft.Unit,
		Note:     draft.Note,
		Optional: draft.Optional,
	}
	if err := p.store.PutIngredient(ctx, ingredient); err != nil {
		return snapshot.Ingredient{}, err
	}
	return ingredient, p.touch(ctx)
}

// RemoveIngredient deletes an ingredient.
func (p *Planner) RemoveIngredient(ctx context.Context, id string) error {
	if err := p.store.DeleteIngredient(ctx, id); err != nil {
		return err
	}
	return p.touch(ctx)
}

// PlanDraft carries the user-provided fields of a new meal plan entry.
// Either RecipeID or Title must be set; Servings defaults to the recipe's.
type PlanDraft struct {
	Date     string
	Slot     snapshot.Slot
	RecipeID string
	Title    string
	Servings int
	Note     string
}

// Schedule adds a meal plan entry.
func (p *Planner) Schedule(ctx context.Context, draft PlanDraft) (snapshot.MealPlan, error) {
	if _, err := time.Parse(snapshot.DateLayout, draft.Date); err != nil {
		return snapshot.MealPlan{}, fmt.Errorf("%w: %q", ErrInvalidDate, draft.Date)
	}
	if !draft.Slot.IsValid() {
		return snapshot.MealPlan{}, fmt.Errorf("%w: %q", ErrInvalidSlot, draft.Slot)
	}
	if draft.RecipeID == "" && draft.Title == "" {
		return snapshot.MealPlan{}, ErrNoMeal
	}

	plan := snapshot.MealPlan{
		ID:       p.newID(),
		Date:     draft.Date,
		Slot:     draft.Slot,
		RecipeID: draft.RecipeID,
		Title:    draft.Title,
		Servings: draft.Servings,
		Note:     draft.Note,
	}

	if draft.RecipeID != "" {
		recipe, err := p.store.GetRecipe(ctx, draft.RecipeID)
		if err != nil {
			if errors.Is(err, sqlite.ErrNotFound) {
				return snapshot.MealPlan{}, fmt.Errorf("%w: %s", ErrUnknownRecipe, draft.RecipeID)
			}
			return snapshot.MealPlan{}, err
		}
		if plan.Title == "" {
			plan.Title = recipe.Name
		}
		if plan.Servings == 0 {
			plan.Servings = recipe.Servings
		}
	}

	if err := p.store.PutMealPlan(ctx, plan); err != nil {
		return snapshot.MealPlan{}, err
	}
	return plan, p.touch(ctx)
}

// Unschedule removes a meal plan entry.
func (p *Planner) Unschedule(ctx context.Context, id string) error {
	if err := p.store.DeleteMealPlan(ctx, id); err != nil {
		return err
	}
	return p.touch(ctx)
}

// Plans returns meal plan entries within the inclusive date range. Empty
// bounds are open-ended.
func (p *Planner) Plans(ctx context.Context, from, to string) ([]snapshot.MealPlan, error) {
	for _, date := range []string{from, to} {
		if date == "" {
			continue
		}
		if _, err := time.Parse(snapshot.DateLayout, date); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
	}
	return p.store.ListMealPlans(ctx, from, to)
}

// touch bumps the working snapshot's last-modified stamp.
func (p *Planner) touch(ctx context.Context) error {
	return p.store.SetLastModified(ctx, p.now().UnixMilli())
}

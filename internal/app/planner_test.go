package app

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sous/internal/adapters/sqlite"
	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "sous.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func TestPlannerAddRecipe(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	planner := NewPlanner(store, WithPlannerClock(fixedClock(1000)), WithPlannerIDs(seqIDs("r")))

	recipe, err := planner.AddRecipe(context.Background(), RecipeDraft{
		Name:         "Pasta Carbonara",
		Servings:     2,
		PrepMinutes:  10,
		CookMinutes:  20,
		Instructions: []string{"Boil pasta", "Mix eggs and cheese"},
		Tags:         []string{"pasta", "quick"},
	})
	require.NoError(t, err)
	assert.Equal(t, "r-1", recipe.ID)

	got, ingredients, err := planner.Recipe(context.Background(), "r-1")
	require.NoError(t, err)
	assert.True(t, got.Equal(recipe))
	assert.Empty(t, ingredients)

	lm, err := store.LastModified(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), lm, "mutations should bump the snapshot stamp")
}

func TestPlannerAddRecipeRequiresName(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(newTestStore(t))

	_, err := planner.AddRecipe(context.Background(), RecipeDraft{Servings: 2})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestPlannerUpdateRecipe(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(newTestStore(t), WithPlannerIDs(seqIDs("r")))
	ctx := context.Background()

	recipe, err := planner.AddRecipe(ctx, RecipeDraft{Name: "Soup", Servings: 4})
	require.NoError(t, err)

	recipe.Name = "Minestrone"
	recipe.Tags = []string{"vegetarian"}
	require.NoError(t, planner.UpdateRecipe(ctx, recipe))

	got, _, err := planner.Recipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Minestrone", got.Name)
	assert.Equal(t, []string{"vegetarian"}, got.Tags)
}

func TestPlannerUpdateRecipeUnknown(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(newTestStore(t))

	err := planner.UpdateRecipe(context.Background(), snapshot.Recipe{ID: "ghost", Name: "Ghost"})
	assert.ErrorIs(t, err, ErrUnknownRecipe)
}

func TestPlannerRemoveRecipe(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(newTestStore(t), WithPlannerIDs(seqIDs("r")))
	ctx := context.Background()

	recipe, err := planner.AddRecipe(ctx, RecipeDraft{Name: "Toast"})
	require.NoError(t, err)
	require.NoError(t, planner.RemoveRecipe(ctx, recipe.ID))

	_, _, err = planner.Recipe(ctx, recipe.ID)
	assert.ErrorIs(t, err, ErrUnknownRecipe)

	assert.ErrorIs(t, planner.RemoveRecipe(ctx, recipe.ID), ErrUnknownRecipe)
}

func TestPlannerIngredients(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(newTestStore(t), WithPlannerIDs(seqIDs("x")))
	ctx := context.Background()

	recipe, err := planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta", Servings: 2})
	require.NoError(t, err)

	first, err := planner.AddIngredient(ctx, recipe.ID, IngredientDraft{Name: "Spaghetti", Quantity: 200, Unit: "g"})
	require.NoError(t, err)
	second, err := planner.AddIngredient(ctx, recipe.ID, IngredientDraft{Name: "Egg", Quantity: 2, Optional: true})
	require.NoError(t, err)

	_, ingredients, err := planner.Recipe(ctx, recipe.ID)
	require.NoError(t, err)
	require.Len(t, ingredients, 2)
	assert.Equal(t, first.ID, ingredients[0].ID)
	assert.Equal(t, second.ID, ingredients[1].ID)
	assert.True(t, ingredients[1].Optional)

	require.NoError(t, planner.RemoveIngredient(ctx, first.ID))
	_, ingredients, err = planner.Recipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Len(t, ingredients, 1)
}

func TestPlannerAddIngredientValidation(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(newTestStore(t), WithPlannerIDs(seqIDs("x")))
	ctx := context.Background()

	_, err := planner.AddIngredient(ctx, "ghost", IngredientDraft{Name: "Salt"})
	assert.ErrorIs(t, err, ErrUnknownRecipe)

	recipe, err := planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta"})
	require.NoError(t, err)
	_, err = planner.AddIngredient(ctx, recipe.ID, IngredientDraft{Quantity: 1})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestPlannerSchedule(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(newTestStore(t), WithPlannerIDs(seqIDs("p")))
	ctx := context.Background()

	recipe, err := planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta Carbonara", Servings: 2})
	require.NoError(t, err)

	plan, err := planner.Schedule(ctx, PlanDraft{
		Date:     "2025-03-10",
		Slot:     snapshot.SlotDinner,
		RecipeID: recipe.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Pasta Carbonara", plan.Title, "title defaults to the recipe name")
	assert.Equal(t, 2, plan.Servings, "servings default to the recipe's")

	custom, err := planner.Schedule(ctx, PlanDraft{
		Date:     "2025-03-11",
		Slot:     snapshot.SlotLunch,
		RecipeID: recipe.ID,
		Title:    "Leftover pasta",
		Servings: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Leftover pasta", custom.Title)
	assert.Equal(t, 1, custom.Servings)
}

func TestPlannerScheduleTitleOnly(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(newTestStore(t), WithPlannerIDs(seqIDs("p")))

	plan, err := planner.Schedule(context.Background(), PlanDraft{
		Date:  "2025-03-12",
		Slot:  snapshot.SlotDinner,
		Title: "Eating out",
	})
	require.NoError(t, err)
	assert.Empty(t, plan.RecipeID)
	assert.Equal(t, "Eating out", plan.Title)
}

func TestPlannerScheduleValidation(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(newTestStore(t))
	ctx := context.Background()

	tests := []struct {
		name  string
		draft PlanDraft
		want  error
	}{
		{
			name:  "bad date",
			draft: PlanDraft{Date: "10.03.2025", Slot: snapshot.SlotDinner, Title: "x"},
			want:  ErrInvalidDate,
		},
		{
			name:  "bad slot",
			draft: PlanDraft{Date: "2025-03-10", Slot: "brunch", Title: "x"},
			want:  ErrInvalidSlot,
		},
		{
			name:  "no recipe and no title",
			draft: PlanDraft{Date: "2025-03-10", Slot: snapshot.SlotDinner},
			want:  ErrNoMeal,
		},
		{
			name:  "unknown recipe",
			draft: PlanDraft{Date: "2025-03-10", Slot: snapshot.SlotDinner, RecipeID: "ghost"},
			want:  ErrUnknownRecipe,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := planner.Schedule(ctx, tt.draft)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPlannerPlansRange(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(newTestStore(t), WithPlannerIDs(seqIDs("p")))
	ctx := context.Background()

	for _, date := range []string{"2025-03-09", "2025-03-10", "2025-03-14"} {
		_, err := planner.Schedule(ctx, PlanDraft{Date: date, Slot: snapshot.SlotDinner, Title: "Meal " + date})
		require.NoError(t, err)
	}

	plans, err := planner.Plans(ctx, "2025-03-10", "2025-03-14")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "2025-03-10", plans[0].Date)
	assert.Equal(t, "2025-03-14", plans[1].Date)

	_, err = planner.Plans(ctx, "not-a-date", "")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestPlannerUnschedule(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(newTestStore(t), WithPlannerIDs(seqIDs("p")))
	ctx := context.Background()

	plan, err := planner.Schedule(ctx, PlanDraft{Date: "2025-03-10", Slot: snapshot.SlotDinner, Title: "Soup"})
	require.NoError(t, err)
	require.NoError(t, planner.Unschedule(ctx, plan.ID))

	plans, err := planner.Plans(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, plans)
}

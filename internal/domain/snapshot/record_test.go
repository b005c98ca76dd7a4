package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecipe_Equal(t *testing.T) {
	t.Parallel()

	base := Recipe{
		ID:           "r1",
		Name:         "Pasta",
		Servings:     4,
		Instructions: []string{"boil", "drain"},
		Tags:         []string{"quick"},
	}

	t.Run("equal values", func(t *testing.T) {
		t.Parallel()

		other := base.Clone()
		assert.True(t, base.Equal(other))
	})

	t.Run("different name", func(t *testing.T) {
		t.Parallel()

		other := base.Clone()
		other.Name = "Pasta Carbonara"
		assert.False(t, base.Equal(other))
	})

	t.Run("different instruction order", func(t *testing.T) {
		t.Parallel()

		other := base.Clone()
		other.Instructions = []string{"drain", "boil"}
		assert.False(t, base.Equal(other))
	})

	t.Run("nil and empty slices are equal", func(t *testing.T) {
		t.Parallel()

		a := Recipe{ID: "r1", Name: "Toast", Servings: 1, Tags: nil}
		b := Recipe{ID: "r1", Name: "Toast", Servings: 1, Tags: []string{}}
		assert.True(t, a.Equal(b))
	})

	t.Run("same id different fields is not equal", func(t *testing.T) {
		t.Parallel()

		other := base.Clone()
		other.Servings = 6
		assert.False(t, base.Equal(other))
	})
}

func TestRecipe_Clone(t *testing.T) {
	t.Parallel()

	orig := Recipe{ID: "r1", Name: "Soup", Servings: 2, Tags: []string{"veg"}}
	copied := orig.Clone()
	copied.Tags[0] = "meat"

	assert.Equal(t, "veg", orig.Tags[0])
}

func TestGroceryList_Equal(t *testing.T) {
	t.Parallel()

	a := GroceryList{ID: "g1", Name: "Week 34", Range: DateRange{Start: "2026-08-17", End: "2026-08-23"}}

	t.Run("nested range compared structurally", func(t *testing.T) {
		t.Parallel()

		b := a.Clone()
		assert.True(t, a.Equal(b))

		b.Range.End = "2026-08-24"
		assert.False(t, a.Equal(b))
	})
}

func TestMealPlan_Equal(t *testing.T) {
	t.Parallel()

	a := MealPlan{ID: "mp1", Date: "2026-08-20", Slot: SlotLunch, RecipeID: "r1", Servings: 4}
	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.Servings = 6
	assert.False(t, a.Equal(b))
}

func TestSlot_IsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, SlotBreakfast.IsValid())
	assert.True(t, SlotDinner.IsValid())
	assert.False(t, Slot("brunch").IsValid())
	assert.False(t, Slot("").IsValid())
}

func TestEntity_IsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, EntityRecipe.IsValid())
	assert.True(t, EntityGroceryItem.IsValid())
	assert.False(t, Entity("user").IsValid())
}

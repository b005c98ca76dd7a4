package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

func TestConflict_ID(t *testing.T) {
	t.Parallel()

	c := NewConflict(KindUpdateUpdate, snapshot.EntityRecipe, "1",
		snapshot.Recipe{ID: "1", Name: "A"}, snapshot.Recipe{ID: "1", Name: "B"}, nil)
	assert.Equal(t, "recipe-1", c.ID())

	c = NewConflict(KindDeleteUpdate, snapshot.EntityMealPlan, "mp1", nil, nil, nil)
	assert.Equal(t, "mealPlan-mp1", c.ID())
}

func TestConflict_String(t *testing.T) {
	t.Parallel()

	c := NewConflict(KindUpdateDelete, snapshot.EntityGroceryList, "g1", nil, nil, nil)
	assert.Equal(t, "groceryList-g1: update-delete", c.String())
}

func TestConflict_IsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, Conflict{}.IsZero())
	assert.False(t, NewConflict(KindUpdateUpdate, snapshot.EntityRecipe, "1", nil, nil, nil).IsZero())
}

func TestConflictKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "update-update", KindUpdateUpdate.String())
	assert.Equal(t, "update-delete", KindUpdateDelete.String())
	assert.Equal(t, "delete-update", KindDeleteUpdate.String())
	assert.Equal(t, "unknown", ConflictKind(42).String())
}

func TestResolution_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "local", ChooseLocal.String())
	assert.Equal(t, "remote", ChooseRemote.String())
	assert.Equal(t, "unknown", Resolution(9).String())
}

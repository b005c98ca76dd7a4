package sync

import (
	"fmt"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// ChangeType classifies one record difference between two snapshots.
type ChangeType int

const (
	// ChangeCreated means the record exists only in the after snapshot.
	ChangeCreated ChangeType = iota
	// ChangeUpdated means the record exists in both with different values.
	ChangeUpdated
	// ChangeDeleted means the record exists only in the before snapshot.
	ChangeDeleted
)

// String returns a human-readable representation of the change type.
func (t ChangeType) String() string {
	switch t {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change describes one record difference, for reporting.
type Change struct {
	Entity snapshot.Entity
	ID     string
	Type   ChangeType
}

// Summary counts record differences between two snapshots. It is what sync
// reports to the user after a merge: how the merge output differs from the
// dataset the device held before.
type Summary struct {
	Created int
	Updated int
	Deleted int
	Changes []Change
}

// Total returns the number of changed records.
func (s Summary) Total() int {
	return s.Created + s.Updated + s.Deleted
}

// HasChanges reports whether the two snapshots differ at all.
func (s Summary) HasChanges() bool {
	return s.Total() > 0
}

// String returns a one-line summary suitable for CLI output.
func (s Summary) String() string {
	return fmt.Sprintf("%d created, %d updated, %d deleted", s.Created, s.Updated, s.Deleted)
}

// Summarize diffs two snapshots record by record across all collections,
// in collection order.
func Summarize(before, after *snapshot.Snapshot) Summary {
	var sum Summary
	collect(&sum, snapshot.EntityRecipe, before.Recipes, after.Recipes)
	collect(&sum, snapshot.EntityMealPlan, before.MealPlans, after.MealPlans)
	collect(&sum, snapshot.EntityIngredient, before.Ingredients, after.Ingredients)
	collect(&sum, snapshot.EntityGroceryList, before.GroceryLists, after.GroceryLists)
	collect(&sum, snapshot.EntityGroceryItem, before.GroceryItems, after.GroceryItems)
	return sum
}

func collect[T snapshot.Record[T]](sum *Summary, entity snapshot.Entity, before, after []T) {
	changes := Detect(before, after)
	for _, rec := range changes.Created {
		sum.Changes = append(sum.Changes, Change{Entity: entity, ID: rec.Key(), Type: ChangeCreated})
		sum.Created++
	}
	for _, rec := range changes.Updated {
		sum.Changes = append(sum.Changes, Change{Entity: entity, ID: rec.Key(), Type: ChangeUpdated})
		sum.Updated++
	}
	for _, id := range changes.Deleted {
		sum.Changes = append(sum.Changes, Change{Entity: entity, ID: id, Type: ChangeDeleted})
		sum.Deleted++
	}
}

package sync

import (
	"errors"
	"fmt"
	"slices"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

var (
	// ErrMissingResolution is returned when a conflict has no entry in the
	// resolution map. The error message names the conflict id so callers can
	// re-prompt for exactly the missing choice.
	ErrMissingResolution = errors.New("missing resolution for conflict")

	// ErrUnexpectedVersionType is returned when a conflict carries a record
	// whose type does not match its entity kind.
	ErrUnexpectedVersionType = errors.New("conflict version has unexpected type")
)

// ResolveConflicts applies caller-supplied choices to a partially merged
// snapshot and returns the final one.
//
// Every conflict is looked up in resolutions by its synthetic id; a missing
// entry is a hard error and aborts resolution (choices applied before the
// missing one are not rolled back — the partial input is never mutated, so
// the caller can simply re-invoke with a complete map). A chosen version that
// is nil removes the record from its collection; a non-nil one replaces the
// record in place or appends it when absent, which covers resurrecting a
// record the other side deleted. Removing an absent record is a no-op, not an
// error.
//
// The resolved snapshot is stamped with a fresh lastModified and the current
// format version. Like Merge, ResolveConflicts never panics.
func (m *Merger) ResolveConflicts(partial *snapshot.Snapshot, conflicts []Conflict, resolutions map[string]Resolution) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("conflict resolution failed: %v", r)
		}
	}()

	if partial == nil {
		return nil, ErrNilSnapshot
	}

	merged := partial.Clone()
	for _, c := range conflicts {
		choice, ok := resolutions[c.ID()]
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrMissingResolution, c.ID())
		}

		var winner any
		switch choice {
		case ChooseLocal:
			winner = c.LocalVersion()
		case ChooseRemote:
			winner = c.RemoteVersion()
		default:
			return nil, fmt.Errorf("%w: %d for conflict %s", ErrUnknownResolution, choice, c.ID())
		}

		if err := applyResolution(merged, c, winner); err != nil {
			return nil, err
		}
	}

	merged.Stamp(m.now().UnixMilli())
	return &Result{Merged: merged}, nil
}

func applyResolution(s *snapshot.Snapshot, c Conflict, winner any) error {
	var err error
	switch c.Entity() {
	case snapshot.EntityRecipe:
		s.Recipes, err = applyChoice(s.Recipes, c, winner)
	case snapshot.EntityMealPlan:
		s.MealPlans, err = applyChoice(s.MealPlans, c, winner)
	case snapshot.EntityIngredient:
		s.Ingredients, err = applyChoice(s.Ingredients, c, winner)
	case snapshot.EntityGroceryList:
		s.GroceryLists, err = applyChoice(s.GroceryLists, c, winner)
	case snapshot.EntityGroceryItem:
		s.GroceryItems, err = applyChoice(s.GroceryItems, c, winner)
	default:
		err = fmt.Errorf("unknown entity %q in conflict %s", c.Entity(), c.ID())
	}
	return err
}

func applyChoice[T snapshot.Record[T]](coll []T, c Conflict, winner any) ([]T, error) {
	if winner == nil {
		return slices.DeleteFunc(coll, func(r T) bool { return r.Key() == c.EntityID() }), nil
	}
	rec, ok := winner.(T)
	if !ok {
		return nil, fmt.Errorf("%w: conflict %s carries %T", ErrUnexpectedVersionType, c.ID(), winner)
	}
	return upsert(coll, rec.Clone()), nil
}

func upsert[T snapshot.Record[T]](coll []T, rec T) []T {
	for i := range coll {
		if coll[i].Key() == rec.Key() {
			coll[i] = rec
			return coll
		}
	}
	return append(coll, rec)
}

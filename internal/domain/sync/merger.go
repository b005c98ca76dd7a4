// Package sync implements three-way reconciliation of meal-planning
// snapshots: change detection against a common ancestor, a merge engine that
// combines non-conflicting changes from both sides while classifying the
// rest, and resolution of the remaining conflicts by caller choice.
//
// The engine is pure: it performs no I/O, holds no state between calls, and
// never mutates its input snapshots. All persistence, transport, and retry
// concerns belong to the calling orchestrator.
package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// ErrNilSnapshot is returned when a snapshot argument is nil.
var ErrNilSnapshot = errors.New("nil snapshot")

// Result is the merge engine's output. Merged is always populated: on a clean
// merge it is the final stamped snapshot, otherwise it holds every
// non-conflicting change with conflicting records kept at their base value so
// resolutions can be layered on top without recomputation.
type Result struct {
	Merged    *snapshot.Snapshot
	Conflicts []Conflict
}

// Clean reports whether the merge completed without conflicts.
func (r *Result) Clean() bool {
	return len(r.Conflicts) == 0
}

// Merger reconciles dataset snapshots. The zero-argument constructor stamps
// merged snapshots with the wall clock; tests inject a fixed clock.
type Merger struct {
	now func() time.Time
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithClock overrides the timestamp source used to stamp merged snapshots.
func WithClock(now func() time.Time) MergerOption {
	return func(m *Merger) {
		m.now = now
	}
}

// NewMerger creates a merge engine.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge reconciles local and remote snapshots against their common ancestor
// base.
//
// When at most one side advanced past base (by lastModified), the advanced
// side is returned unchanged: a single writer cannot conflict, so record-level
// diffing is skipped. Otherwise every collection is reconciled independently:
// changes applied on only one side carry over, matching edits collapse, and
// diverging edits become conflicts, aggregated across all collections into
// one flat list. A clean merge is stamped with a fresh lastModified and the
// current format version; a conflicted one keeps base's stamp until resolved.
//
// Merge never panics: unexpected failures during reconciliation are caught
// and returned as an error with no result.
func (m *Merger) Merge(base, local, remote *snapshot.Snapshot) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("merge failed: %v", r)
		}
	}()

	if base == nil || local == nil || remote == nil {
		return nil, ErrNilSnapshot
	}

	localChanged := local.LastModified > base.LastModified
	remoteChanged := remote.LastModified > base.LastModified
	switch {
	case !localChanged && !remoteChanged:
		return &Result{Merged: local.Clone()}, nil
	case remoteChanged && !localChanged:
		return &Result{Merged: remote.Clone()}, nil
	case localChanged && !remoteChanged:
		return &Result{Merged: local.Clone()}, nil
	}

	merged := &snapshot.Snapshot{
		LastModified: base.LastModified,
		Version:      base.Version,
	}

	var conflicts []Conflict
	merged.Recipes, conflicts = mergeCollection(snapshot.EntityRecipe, base.Recipes, local.Recipes, remote.Recipes, conflicts)
	merged.MealPlans, conflicts = mergeCollection(snapshot.EntityMealPlan, base.MealPlans, local.MealPlans, remote.MealPlans, conflicts)
	merged.Ingredients, conflicts = mergeCollection(snapshot.EntityIngredient, base.Ingredients, local.Ingredients, remote.Ingredients, conflicts)
	merged.GroceryLists, conflicts = mergeCollection(snapshot.EntityGroceryList, base.GroceryLists, local.GroceryLists, remote.GroceryLists, conflicts)
	merged.GroceryItems, conflicts = mergeCollection(snapshot.EntityGroceryItem, base.GroceryItems, local.GroceryItems, remote.GroceryItems, conflicts)

	if len(conflicts) == 0 {
		merged.Stamp(m.now().UnixMilli())
	}
	return &Result{Merged: merged, Conflicts: conflicts}, nil
}

// mergeCollection reconciles one entity collection. The merged collection
// starts from base order: updated records are replaced in place, deleted ids
// dropped, creations appended (local side first). Conflicting records keep
// their base value, so the caller can apply resolutions on top later.
func mergeCollection[T snapshot.Record[T]](entity snapshot.Entity, base, local, remote []T, conflicts []Conflict) ([]T, []Conflict) {
	localChanges, remoteChanges := DetectChanges(base, local, remote)

	baseByID := keyBy(base)
	localUpdated := keyBy(localChanges.Updated)
	remoteUpdated := keyBy(remoteChanges.Updated)
	localCreated := keyBy(localChanges.Created)
	remoteCreated := keyBy(remoteChanges.Created)
	localDeleted := idSet(localChanges.Deleted)
	remoteDeleted := idSet(remoteChanges.Deleted)

	replaced := make(map[string]T)
	removed := make(map[string]struct{})
	var appended []T

	for _, rec := range localChanges.Updated {
		id := rec.Key()
		if other, ok := remoteUpdated[id]; ok {
			if rec.Equal(other) {
				// Both sides made the same edit.
				replaced[id] = rec.Clone()
				continue
			}
			conflicts = append(conflicts, NewConflict(KindUpdateUpdate, entity, id, rec.Clone(), other.Clone(), baseByID[id].Clone()))
			continue
		}
		if _, ok := remoteDeleted[id]; ok {
			conflicts = append(conflicts, NewConflict(KindUpdateDelete, entity, id, rec.Clone(), nil, baseByID[id].Clone()))
			continue
		}
		replaced[id] = rec.Clone()
	}

	for _, rec := range remoteChanges.Updated {
		id := rec.Key()
		if _, ok := localUpdated[id]; ok {
			// Handled in the local pass.
			continue
		}
		if _, ok := localDeleted[id]; ok {
			conflicts = append(conflicts, NewConflict(KindDeleteUpdate, entity, id, nil, rec.Clone(), baseByID[id].Clone()))
			continue
		}
		replaced[id] = rec.Clone()
	}

	// A deletion conflicting with the other side's update keeps the record at
	// its base value; a deletion on both sides is not a conflict, the record
	// is simply gone.
	for _, id := range localChanges.Deleted {
		if _, ok := remoteUpdated[id]; ok {
			continue
		}
		removed[id] = struct{}{}
	}
	for _, id := range remoteChanges.Deleted {
		if _, ok := localUpdated[id]; ok {
			continue
		}
		removed[id] = struct{}{}
	}

	for _, rec := range localChanges.Created {
		id := rec.Key()
		if other, ok := remoteCreated[id]; ok {
			if rec.Equal(other) {
				// The same record was born identically on both sides.
				appended = append(appended, rec.Clone())
				continue
			}
			// Independent creations of the same id with diverging values are
			// surfaced as a conflict with no base version instead of letting
			// whichever side applies last win silently.
			conflicts = append(conflicts, NewConflict(KindUpdateUpdate, entity, id, rec.Clone(), other.Clone(), nil))
			continue
		}
		appended = append(appended, rec.Clone())
	}
	for _, rec := range remoteChanges.Created {
		if _, ok := localCreated[rec.Key()]; ok {
			continue
		}
		appended = append(appended, rec.Clone())
	}

	merged := make([]T, 0, len(base)+len(appended))
	for _, rec := range base {
		id := rec.Key()
		if _, ok := removed[id]; ok {
			continue
		}
		if rep, ok := replaced[id]; ok {
			merged = append(merged, rep)
			continue
		}
		merged = append(merged, rec.Clone())
	}
	return append(merged, appended...), conflicts
}

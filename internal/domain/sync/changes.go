package sync

import "github.com/felixgeelhaar/sous/internal/domain/snapshot"

// Changes holds the difference between one of a base snapshot's collections
// and the corresponding derived (local or remote) collection. Deleted records
// are bare ids: the full record only exists in base.
type Changes[T snapshot.Record[T]] struct {
	Created []T
	Updated []T
	Deleted []string
}

// IsEmpty reports whether no changes were detected.
func (c Changes[T]) IsEmpty() bool {
	return len(c.Created) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Detect classifies every record of derived against base by id: a record
// absent from base is created, a record present in both with structurally
// different values is updated, and an id present in base but absent from
// derived is deleted. Pure and deterministic: created and updated keep
// derived order, deleted keeps base order. A nil collection is an empty one.
func Detect[T snapshot.Record[T]](base, derived []T) Changes[T] {
	baseByID := keyBy(base)
	derivedIDs := make(map[string]struct{}, len(derived))

	var out Changes[T]
	for _, rec := range derived {
		id := rec.Key()
		derivedIDs[id] = struct{}{}
		baseRec, ok := baseByID[id]
		if !ok {
			out.Created = append(out.Created, rec)
			continue
		}
		if !rec.Equal(baseRec) {
			out.Updated = append(out.Updated, rec)
		}
	}
	for _, rec := range base {
		if _, ok := derivedIDs[rec.Key()]; !ok {
			out.Deleted = append(out.Deleted, rec.Key())
		}
	}
	return out
}

// DetectChanges runs Detect for both derived sides against the same base
// collection.
func DetectChanges[T snapshot.Record[T]](base, local, remote []T) (localChanges, remoteChanges Changes[T]) {
	return Detect(base, local), Detect(base, remote)
}

func keyBy[T snapshot.Record[T]](records []T) map[string]T {
	m := make(map[string]T, len(records))
	for _, r := range records {
		m[r.Key()] = r
	}
	return m
}

func idSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

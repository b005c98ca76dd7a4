package app

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
	"github.com/felixgeelhaar/sous/internal/domain/sync"
)

// SyncState classifies how the local store relates to the shared snapshot.
// It is computed from record-level diffs against the base, so reordered but
// otherwise identical data still counts as in sync.
type SyncState string

const (
	// StateUnlinked means no shared snapshot exists yet.
	StateUnlinked SyncState = "unlinked"
	// StateInSync means local and shared data match the last synced base.
	StateInSync SyncState = "in-sync"
	// StateAhead means only local changes are waiting to be pushed.
	StateAhead SyncState = "ahead"
	// StateBehind means only shared changes are waiting to be pulled.
	StateBehind SyncState = "behind"
	// StateDiverged means both sides changed since the last sync.
	StateDiverged SyncState = "diverged"
)

// Status describes this device's sync position without changing anything.
type Status struct {
	// DeviceID identifies this installation.
	DeviceID string
	// State is the overall classification.
	State SyncState
	// RecordCount is the number of records in the local store.
	RecordCount int
	// LocalModified is the local snapshot's lastModified stamp (Unix ms).
	LocalModified int64
	// RemoteModified is the shared snapshot's stamp, zero when unlinked.
	RemoteModified int64
	// LocalChanges summarizes local edits since the last sync.
	LocalChanges sync.Summary
	// RemoteChanges summarizes shared edits since the last sync.
	RemoteChanges sync.Summary
	// Conflicts is the number of conflicts a sync would stop on. Only
	// non-zero when State is StateDiverged.
	Conflicts int
}

// Status reports how the local store relates to the shared snapshot.
func (s *SyncService) Status(ctx context.Context) (*Status, error) {
	local, base, remote, err := s.loadSides(ctx)
	if err != nil {
		return nil, err
	}
	deviceID, err := s.store.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load device id: %w", err)
	}

	st := &Status{
		DeviceID:      deviceID,
		RecordCount:   local.RecordCount(),
		LocalModified: local.LastModified,
	}

	if remote == nil {
		st.State = StateUnlinked
		st.LocalChanges = sync.Summarize(snapshot.New(), local)
		return st, nil
	}
	st.RemoteModified = remote.LastModified

	if base == nil {
		base = snapshot.New()
	}
	st.LocalChanges = sync.Summarize(base, local)
	st.RemoteChanges = sync.Summarize(base, remote)

	switch {
	case !st.LocalChanges.HasChanges() && !st.RemoteChanges.HasChanges():
		st.State = StateInSync
	case st.LocalChanges.HasChanges() && !st.RemoteChanges.HasChanges():
		st.State = StateAhead
	case !st.LocalChanges.HasChanges():
		st.State = StateBehind
	default:
		st.State = StateDiverged
		result, err := s.merger.Merge(base, local, remote)
		if err != nil {
			return nil, fmt.Errorf("failed to merge snapshots: %w", err)
		}
		st.Conflicts = len(result.Conflicts)
	}
	return st, nil
}

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/sous/internal/adapters/logging"
	"github.com/felixgeelhaar/sous/internal/adapters/payload"
	"github.com/felixgeelhaar/sous/internal/adapters/sqlite"
	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
	"github.com/felixgeelhaar/sous/internal/domain/sync"
	"github.com/felixgeelhaar/sous/internal/ports"
)

// BlobKey is the name of the shared snapshot blob. Every device reads and
// writes the same key; the payload codec decides how its bytes are framed.
const BlobKey = "snapshot.sous"

// ErrNoRemoteSnapshot is returned by Pull when the shared location holds no
// snapshot to pull from.
var ErrNoRemoteSnapshot = errors.New("no shared snapshot found")

// ErrNothingToResolve is returned by Resolve when there is no shared snapshot,
// so no conflicts can exist.
var ErrNothingToResolve = errors.New("nothing to resolve: no shared snapshot")

// Action describes what a sync run did.
type Action string

const (
	// ActionUpToDate means local and shared state already matched.
	ActionUpToDate Action = "up-to-date"
	// ActionInitialized means the first snapshot was published to an empty
	// shared location.
	ActionInitialized Action = "initialized"
	// ActionPushed means only the shared snapshot changed.
	ActionPushed Action = "pushed"
	// ActionPulled means only the local store changed.
	ActionPulled Action = "pulled"
	// ActionMerged means both sides contributed changes.
	ActionMerged Action = "merged"
	// ActionConflicts means the run stopped without writing anything because
	// the merge needs manual resolution.
	ActionConflicts Action = "conflicts"
)

// Outcome reports the result of a Sync, Resolve, Push or Pull run.
type Outcome struct {
	// Action is what the run did.
	Action Action
	// Applied summarizes the changes written to the local store.
	Applied sync.Summary
	// Pushed summarizes the changes written to the shared snapshot.
	Pushed sync.Summary
	// Conflicts holds the unresolved conflicts when Action is
	// ActionConflicts. Empty otherwise.
	Conflicts []sync.Conflict
}

// SyncService reconciles the local store with the shared snapshot blob.
//
// Every run re-derives its inputs: the local snapshot from the store, the
// base snapshot from the last successful sync, and the remote snapshot from
// the blob store. Nothing is persisted until a merge completes cleanly, so a
// conflicted run leaves both sides exactly as it found them.
type SyncService struct {
	store  *sqlite.Store
	blobs  ports.BlobStore
	codec  *payload.Codec
	merger *sync.Merger
	logger ports.Logger
}

// SyncServiceOption configures a SyncService.
type SyncServiceOption func(*SyncService)

// WithMerger replaces the merge engine, mainly to inject a fixed clock in
// tests.
func WithMerger(m *sync.Merger) SyncServiceOption {
	return func(s *SyncService) {
		s.merger = m
	}
}

// WithSyncLogger sets the logger used for sync progress.
func WithSyncLogger(logger ports.Logger) SyncServiceOption {
	return func(s *SyncService) {
		s.logger = logger
	}
}

// NewSyncService creates a SyncService over the given local store, shared
// blob store and payload codec.
func NewSyncService(store *sqlite.Store, blobs ports.BlobStore, codec *payload.Codec, opts ...SyncServiceOption) *SyncService {
	s := &SyncService{
		store:  store,
		blobs:  blobs,
		codec:  codec,
		merger: sync.NewMerger(),
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync reconciles local and shared state.
//
// With no shared snapshot yet, the local one is published as-is. Otherwise
// local and remote are merged against the base recorded by the last
// successful sync; a device that never synced merges against an empty base,
// so everything it holds counts as created. A clean merge is written to the
// local store, the shared blob and the base in that order. Conflicts abort
// the run before anything is written and are reported on the Outcome for
// Resolve to pick up.
func (s *SyncService) Sync(ctx context.Context) (*Outcome, error) {
	local, base, remote, err := s.loadSides(ctx)
	if err != nil {
		return nil, err
	}

	if remote == nil {
		if err := s.publish(ctx, local); err != nil {
			return nil, err
		}
		action := ActionInitialized
		if base != nil {
			// The shared snapshot disappeared after a previous sync. Seed it
			// again from local rather than failing.
			s.logger.Warn(ctx, "shared snapshot missing, publishing local state", ports.F("key", BlobKey))
			action = ActionPushed
		}
		out := &Outcome{Action: action, Pushed: sync.Summarize(snapshot.New(), local)}
		s.logOutcome(ctx, out)
		return out, nil
	}

	if base == nil {
		base = snapshot.New()
	}

	result, err := s.merger.Merge(base, local, remote)
	if err != nil {
		return nil, fmt.Errorf("failed to merge snapshots: %w", err)
	}
	if !result.Clean() {
		s.logger.Info(ctx, "sync stopped on conflicts", ports.F("conflicts", len(result.Conflicts)))
		return &Outcome{Action: ActionConflicts, Conflicts: result.Conflicts}, nil
	}
	return s.commit(ctx, local, remote, result.Merged)
}

// Conflicts reports the conflicts the next Sync would stop on, without
// writing anything. An unlinked device or a clean merge yields none.
func (s *SyncService) Conflicts(ctx context.Context) ([]sync.Conflict, error) {
	local, base, remote, err := s.loadSides(ctx)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, nil
	}
	if base == nil {
		base = snapshot.New()
	}
	result, err := s.merger.Merge(base, local, remote)
	if err != nil {
		return nil, fmt.Errorf("failed to merge snapshots: %w", err)
	}
	return result.Conflicts, nil
}

// Resolve re-runs the conflicted merge and applies the given resolutions,
// keyed by conflict id. It is the second half of a Sync that stopped on
// conflicts: nothing was persisted then, so the merge is recomputed from the
// same inputs before the choices are applied. Every conflict must be decided
// or the run fails without writing. If the conflicts cleared in the meantime
// (the other device resolved them first), the clean merge is committed and
// the resolutions are ignored.
func (s *SyncService) Resolve(ctx context.Context, resolutions map[string]sync.Resolution) (*Outcome, error) {
	local, base, remote, err := s.loadSides(ctx)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, ErrNothingToResolve
	}
	if base == nil {
		base = snapshot.New()
	}

	result, err := s.merger.Merge(base, local, remote)
	if err != nil {
		return nil, fmt.Errorf("failed to merge snapshots: %w", err)
	}
	if result.Clean() {
		return s.commit(ctx, local, remote, result.Merged)
	}

	resolved, err := s.merger.ResolveConflicts(result.Merged, result.Conflicts, resolutions)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "conflicts resolved", ports.F("conflicts", len(result.Conflicts)))
	return s.commit(ctx, local, remote, resolved.Merged)
}

// Push publishes the local snapshot to the shared location, overwriting
// whatever is there. Intended for recovering from a bad shared state; normal
// flows should use Sync.
func (s *SyncService) Push(ctx context.Context) (*Outcome, error) {
	local, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load local snapshot: %w", err)
	}
	remote, err := s.fetchRemote(ctx)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		remote = snapshot.New()
	}
	if err := s.publish(ctx, local); err != nil {
		return nil, err
	}
	out := &Outcome{Action: ActionPushed, Pushed: sync.Summarize(remote, local)}
	s.logOutcome(ctx, out)
	return out, nil
}

// Pull replaces the local store with the shared snapshot, discarding local
// changes. Fails with ErrNoRemoteSnapshot when there is nothing to pull.
func (s *SyncService) Pull(ctx context.Context) (*Outcome, error) {
	remote, err := s.fetchRemote(ctx)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, ErrNoRemoteSnapshot
	}
	local, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load local snapshot: %w", err)
	}
	if err := s.store.ReplaceSnapshot(ctx, remote); err != nil {
		return nil, fmt.Errorf("failed to replace local snapshot: %w", err)
	}
	if err := s.store.SaveBase(ctx, remote); err != nil {
		return nil, fmt.Errorf("failed to save base snapshot: %w", err)
	}
	out := &Outcome{Action: ActionPulled, Applied: sync.Summarize(local, remote)}
	s.logOutcome(ctx, out)
	return out, nil
}

// commit persists a clean merge: local store first, then the shared blob,
// then the base marking the sync as complete.
func (s *SyncService) commit(ctx context.Context, local, remote, merged *snapshot.Snapshot) (*Outcome, error) {
	applied := sync.Summarize(local, merged)
	pushed := sync.Summarize(remote, merged)

	if err := s.store.ReplaceSnapshot(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to replace local snapshot: %w", err)
	}
	if err := s.publish(ctx, merged); err != nil {
		return nil, err
	}

	out := &Outcome{Applied: applied, Pushed: pushed}
	switch {
	case applied.HasChanges() && pushed.HasChanges():
		out.Action = ActionMerged
	case applied.HasChanges():
		out.Action = ActionPulled
	case pushed.HasChanges():
		out.Action = ActionPushed
	default:
		out.Action = ActionUpToDate
	}
	s.logOutcome(ctx, out)
	return out, nil
}

// publish encodes the snapshot, writes the shared blob and records it as the
// new base.
func (s *SyncService) publish(ctx context.Context, snap *snapshot.Snapshot) error {
	data, err := s.codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.blobs.Put(ctx, BlobKey, data); err != nil {
		return fmt.Errorf("failed to write shared snapshot: %w", err)
	}
	if err := s.store.SaveBase(ctx, snap); err != nil {
		return fmt.Errorf("failed to save base snapshot: %w", err)
	}
	return nil
}

// loadSides gathers the three merge inputs. base and remote are nil when the
// device has never synced or the shared location is empty.
func (s *SyncService) loadSides(ctx context.Context) (local, base, remote *snapshot.Snapshot, err error) {
	local, err = s.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load local snapshot: %w", err)
	}
	base, err = s.store.LoadBase(ctx)
	if errors.Is(err, sqlite.ErrNoBaseSnapshot) {
		base = nil
	} else if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load base snapshot: %w", err)
	}
	remote, err = s.fetchRemote(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return local, base, remote, nil
}

// fetchRemote reads and decodes the shared snapshot. Returns nil when the
// blob does not exist.
func (s *SyncService) fetchRemote(ctx context.Context) (*snapshot.Snapshot, error) {
	data, err := s.blobs.Get(ctx, BlobKey)
	if errors.Is(err, ports.ErrBlobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read shared snapshot: %w", err)
	}
	snap, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode shared snapshot: %w", err)
	}
	return snap, nil
}

func (s *SyncService) logOutcome(ctx context.Context, out *Outcome) {
	s.logger.Info(ctx, "sync finished",
		ports.F("action", string(out.Action)),
		ports.F("applied", out.Applied.Total()),
		ports.F("pushed", out.Pushed.Total()),
	)
}

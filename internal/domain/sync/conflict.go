package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// ConflictKind classifies how local and remote diverged from base for one
// record.
type ConflictKind int

const (
	// KindUpdateUpdate means both sides updated the record to different
	// values. Also used when both sides independently created the same id
	// with different values; the base version is nil in that case.
	KindUpdateUpdate ConflictKind = iota
	// KindUpdateDelete means local updated the record while remote deleted it.
	KindUpdateDelete
	// KindDeleteUpdate means local deleted the record while remote updated it.
	KindDeleteUpdate
)

// String returns a human-readable representation of the conflict kind.
func (k ConflictKind) String() string {
	switch k {
	case KindUpdateUpdate:
		return "update-update"
	case KindUpdateDelete:
		return "update-delete"
	case KindDeleteUpdate:
		return "delete-update"
	default:
		return "unknown"
	}
}

// Conflict records one record-level disagreement that needs a caller-supplied
// choice. The three version fields hold full records; each may be nil to
// represent "record does not exist in that snapshot" (delete and dual-create
// cases). Conflicts are produced by Merge and consumed by ResolveConflicts;
// they are never persisted apart from the snapshot they came from.
type Conflict struct {
	kind     ConflictKind
	entity   snapshot.Entity
	entityID string
	local    any
	remote   any
	base     any
}

// NewConflict creates a conflict for one record of the given entity kind.
func NewConflict(kind ConflictKind, entity snapshot.Entity, entityID string, local, remote, base any) Conflict {
	return Conflict{
		kind:     kind,
		entity:   entity,
		entityID: entityID,
		local:    local,
		remote:   remote,
		base:     base,
	}
}

// ID returns the synthetic conflict id used as the resolution lookup key,
// formed as "{entity}-{entityId}".
func (c Conflict) ID() string {
	return string(c.entity) + "-" + c.entityID
}

// Kind returns the conflict classification.
func (c Conflict) Kind() ConflictKind { return c.kind }

// Entity returns the entity kind of the conflicting record.
func (c Conflict) Entity() snapshot.Entity { return c.entity }

// EntityID returns the id of the conflicting record.
func (c Conflict) EntityID() string { return c.entityID }

// LocalVersion returns the record as local last saw it, or nil if local
// deleted or never had it.
func (c Conflict) LocalVersion() any { return c.local }

// RemoteVersion returns the record as remote last saw it, or nil if remote
// deleted or never had it.
func (c Conflict) RemoteVersion() any { return c.remote }

// BaseVersion returns the common-ancestor record, or nil if the record did
// not exist in base.
func (c Conflict) BaseVersion() any { return c.base }

// IsZero reports whether the conflict is uninitialized.
func (c Conflict) IsZero() bool {
	return c.entityID == "" && c.entity == ""
}

// String returns a human-readable representation of the conflict.
func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s", c.ID(), c.kind)
}

// Resolution is the caller's choice of which side wins one conflict. There is
// no field-by-field option: resolution is all-or-nothing per record.
type Resolution int

const (
	// ChooseLocal keeps the local version of the record.
	ChooseLocal Resolution = iota
	// ChooseRemote keeps the remote version of the record.
	ChooseRemote
)

// String returns the wire name of the resolution.
func (r Resolution) String() string {
	switch r {
	case ChooseLocal:
		return "local"
	case ChooseRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// ErrUnknownResolution is returned when a resolution value is not one of
// local or remote.
var ErrUnknownResolution = errors.New("unknown resolution")

// ParseResolution converts a string to a Resolution.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return ChooseLocal, nil
	case "remote":
		return ChooseRemote, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownResolution, s)
	}
}

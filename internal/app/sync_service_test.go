package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sous/internal/adapters/blobstore"
	"github.com/felixgeelhaar/sous/internal/adapters/payload"
	"github.com/felixgeelhaar/sous/internal/adapters/sqlite"
	"github.com/felixgeelhaar/sous/internal/domain/sync"
	"github.com/felixgeelhaar/sous/internal/ports"
)

// testClock is a manually advanced clock shared by a test's planners and
// mergers so that snapshot stamps are deterministic.
type testClock struct {
	ms int64
}

func (c *testClock) Now() time.Time { return time.UnixMilli(c.ms) }

func (c *testClock) Advance(ms int64) { c.ms += ms }

// device bundles one simulated installation: its own local store and
// services, sharing the blob store with the other devices in the test.
type device struct {
	store   *sqlite.Store
	planner *Planner
	syncer  *SyncService
}

func newDevice(t *testing.T, blobs ports.BlobStore, clk *testClock, prefix string) *device {
	t.Helper()

	store := newTestStore(t)
	return &device{
		store:   store,
		planner: NewPlanner(store, WithPlannerClock(clk.Now), WithPlannerIDs(seqIDs(prefix))),
		syncer: NewSyncService(store, blobs, payload.NewCodec(),
			WithMerger(sync.NewMerger(sync.WithClock(clk.Now)))),
	}
}

func TestSyncInitializesEmptyRemote(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	alice := newDevice(t, blobs, clk, "a")
	ctx := context.Background()

	_, err := alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta", Servings: 2})
	require.NoError(t, err)

	out, err := alice.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionInitialized, out.Action)
	assert.Equal(t, 1, out.Pushed.Created)
	assert.False(t, out.Applied.HasChanges())

	exists, err := blobs.Exists(ctx, BlobKey)
	require.NoError(t, err)
	assert.True(t, exists)

	// Nothing moved since, so the next run is a no-op.
	out, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionUpToDate, out.Action)
}

func TestSyncPullsOntoFreshDevice(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()

	alice := newDevice(t, blobs, clk, "a")
	_, err := alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta", Servings: 2})
	require.NoError(t, err)
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)

	bob := newDevice(t, blobs, clk, "b")
	out, err := bob.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionPulled, out.Action)
	assert.Equal(t, 1, out.Applied.Created)
	assert.False(t, out.Pushed.HasChanges())

	recipes, err := bob.planner.Recipes(ctx)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Equal(t, "Pasta", recipes[0].Name)
}

func TestSyncPushesSingleSidedChange(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()

	alice := newDevice(t, blobs, clk, "a")
	_, err := alice.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	_, err = alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Soup"})
	require.NoError(t, err)

	out, err := alice.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionPushed, out.Action)
	assert.Equal(t, 1, out.Pushed.Created)
}

func TestSyncMergesIndependentEdits(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()

	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")

	_, err := alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta"})
	require.NoError(t, err)
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	_, err = bob.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	_, err = alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Soup"})
	require.NoError(t, err)
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	_, err = bob.planner.AddRecipe(ctx, RecipeDraft{Name: "Salad"})
	require.NoError(t, err)

	out, err := bob.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionMerged, out.Action)
	assert.Equal(t, 1, out.Applied.Created, "bob gains alice's soup")
	assert.Equal(t, 1, out.Pushed.Created, "bob publishes his salad")

	clk.Advance(1000)
	out, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionPulled, out.Action)

	for _, d := range []*device{alice, bob} {
		recipes, err := d.planner.Recipes(ctx)
		require.NoError(t, err)
		assert.Len(t, recipes, 3)
	}
}

// divergedRecipe sets up the classic conflict: both devices share one recipe,
// alice renames it and syncs, bob renames it differently and stays local.
// Returns the recipe id.
func divergedRecipe(t *testing.T, ctx context.Context, clk *testClock, alice, bob *device) string {
	t.Helper()

	recipe, err := alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta", Servings: 2})
	require.NoError(t, err)
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	_, err = bob.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	aliceCopy, _, err := alice.planner.Recipe(ctx, recipe.ID)
	require.NoError(t, err)
	aliceCopy.Name = "Pasta Alfredo"
	require.NoError(t, alice.planner.UpdateRecipe(ctx, aliceCopy))
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	bobCopy, _, err := bob.planner.Recipe(ctx, recipe.ID)
	require.NoError(t, err)
	bobCopy.Name = "Pasta Carbonara"
	require.NoError(t, bob.planner.UpdateRecipe(ctx, bobCopy))

	return recipe.ID
}

func TestSyncStopsOnConflict(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")
	recipeID := divergedRecipe(t, ctx, clk, alice, bob)

	out, err := bob.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionConflicts, out.Action)
	require.Len(t, out.Conflicts, 1)

	conflict := out.Conflicts[0]
	assert.Equal(t, "recipe-"+recipeID, conflict.ID())
	assert.Equal(t, sync.KindUpdateUpdate, conflict.Kind())

	// Nothing was written on either side: bob keeps his rename locally and
	// the shared snapshot still carries alice's.
	got, _, err := bob.planner.Recipe(ctx, recipeID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta Carbonara", got.Name)

	out, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionUpToDate, out.Action, "shared snapshot must be untouched by the conflicted run")

	// The conflicted run is repeatable until resolved.
	out, err = bob.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionConflicts, out.Action)
	assert.Len(t, out.Conflicts, 1)
}

func TestSyncConflictsDryRun(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")

	conflicts, err := alice.syncer.Conflicts(ctx)
	require.NoError(t, err)
	assert.Empty(t, conflicts, "unlinked device has nothing to conflict with")

	recipeID := divergedRecipe(t, ctx, clk, alice, bob)

	conflicts, err = bob.syncer.Conflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "recipe-"+recipeID, conflicts[0].ID())
}

func TestSyncResolveKeepLocal(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")
	recipeID := divergedRecipe(t, ctx, clk, alice, bob)

	clk.Advance(1000)
	out, err := bob.syncer.Resolve(ctx, map[string]sync.Resolution{
		"recipe-" + recipeID: sync.ChooseLocal,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionPushed, out.Action, "keeping local means only the shared side changes")

	got, _, err := bob.planner.Recipe(ctx, recipeID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta Carbonara", got.Name)

	clk.Advance(1000)
	out, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionPulled, out.Action)
	got, _, err = alice.planner.Recipe(ctx, recipeID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta Carbonara", got.Name, "alice converges on bob's resolution")
}

func TestSyncResolveKeepRemote(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")
	recipeID := divergedRecipe(t, ctx, clk, alice, bob)

	clk.Advance(1000)
	out, err := bob.syncer.Resolve(ctx, map[string]sync.Resolution{
		"recipe-" + recipeID: sync.ChooseRemote,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionPulled, out.Action, "keeping remote means only the local side changes")

	got, _, err := bob.planner.Recipe(ctx, recipeID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta Alfredo", got.Name)
}

func TestSyncResolveMissingResolution(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")
	recipeID := divergedRecipe(t, ctx, clk, alice, bob)

	_, err := bob.syncer.Resolve(ctx, map[string]sync.Resolution{})
	require.ErrorIs(t, err, sync.ErrMissingResolution)
	assert.ErrorContains(t, err, "recipe-"+recipeID)

	// The failed resolve must not have written anything.
	got, _, err := bob.planner.Recipe(ctx, recipeID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta Carbonara", got.Name)
	conflicts, err := bob.syncer.Conflicts(ctx)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestSyncResolveDeleteWins(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")

	recipe, err := alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta"})
	require.NoError(t, err)
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	_, err = bob.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	require.NoError(t, alice.planner.RemoveRecipe(ctx, recipe.ID))
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	bobCopy, _, err := bob.planner.Recipe(ctx, recipe.ID)
	require.NoError(t, err)
	bobCopy.Name = "Pasta Deluxe"
	require.NoError(t, bob.planner.UpdateRecipe(ctx, bobCopy))

	out, err := bob.syncer.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, out.Conflicts, 1)
	assert.Equal(t, sync.KindUpdateDelete, out.Conflicts[0].Kind())
	assert.Nil(t, out.Conflicts[0].RemoteVersion())

	clk.Advance(1000)
	_, err = bob.syncer.Resolve(ctx, map[string]sync.Resolution{
		out.Conflicts[0].ID(): sync.ChooseRemote,
	})
	require.NoError(t, err)

	_, _, err = bob.planner.Recipe(ctx, recipe.ID)
	assert.ErrorIs(t, err, ErrUnknownRecipe, "remote delete wins, recipe is gone")
}

func TestSyncResolveResurrectsUpdate(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")

	recipe, err := alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta"})
	require.NoError(t, err)
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	_, err = bob.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	require.NoError(t, alice.planner.RemoveRecipe(ctx, recipe.ID))
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	bobCopy, _, err := bob.planner.Recipe(ctx, recipe.ID)
	require.NoError(t, err)
	bobCopy.Name = "Pasta Deluxe"
	require.NoError(t, bob.planner.UpdateRecipe(ctx, bobCopy))

	out, err := bob.syncer.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, out.Conflicts, 1)

	clk.Advance(1000)
	_, err = bob.syncer.Resolve(ctx, map[string]sync.Resolution{
		out.Conflicts[0].ID(): sync.ChooseLocal,
	})
	require.NoError(t, err)

	got, _, err := bob.planner.Recipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta Deluxe", got.Name, "local update wins, recipe survives")

	clk.Advance(1000)
	outA, err := alice.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionPulled, outA.Action)
	got, _, err = alice.planner.Recipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta Deluxe", got.Name, "the deleted recipe is resurrected on alice")
}

func TestSyncResolveWithoutRemote(t *testing.T) {
	t.Parallel()

	alice := newDevice(t, blobstore.NewMemStore(), &testClock{ms: 1000}, "a")

	_, err := alice.syncer.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNothingToResolve)
}

func TestSyncRepublishesMissingRemote(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")

	_, err := alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta"})
	require.NoError(t, err)
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, blobs.Delete(ctx, BlobKey))

	out, err := alice.syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionPushed, out.Action, "a previously synced device reseeds the shared snapshot")

	exists, err := blobs.Exists(ctx, BlobKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSyncPushOverwritesRemote(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")
	recipeID := divergedRecipe(t, ctx, clk, alice, bob)

	out, err := bob.syncer.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionPushed, out.Action)
	assert.Equal(t, 1, out.Pushed.Updated)

	clk.Advance(1000)
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	got, _, err := alice.planner.Recipe(ctx, recipeID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta Carbonara", got.Name, "push discarded alice's shared version")
}

func TestSyncPullOverwritesLocal(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")
	recipeID := divergedRecipe(t, ctx, clk, alice, bob)

	out, err := bob.syncer.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionPulled, out.Action)
	assert.Equal(t, 1, out.Applied.Updated)

	got, _, err := bob.planner.Recipe(ctx, recipeID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta Alfredo", got.Name, "pull discarded bob's local rename")

	conflicts, err := bob.syncer.Conflicts(ctx)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestSyncPullRequiresRemote(t *testing.T) {
	t.Parallel()

	alice := newDevice(t, blobstore.NewMemStore(), &testClock{ms: 1000}, "a")

	_, err := alice.syncer.Pull(context.Background())
	assert.ErrorIs(t, err, ErrNoRemoteSnapshot)
}

func TestSyncStatusStates(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")

	st, err := alice.syncer.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnlinked, st.State)
	assert.NotEmpty(t, st.DeviceID)
	assert.Zero(t, st.RecordCount)

	recipe, err := alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta"})
	require.NoError(t, err)
	st, err = alice.syncer.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnlinked, st.State)
	assert.Equal(t, 1, st.LocalChanges.Created)

	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	_, err = bob.syncer.Sync(ctx)
	require.NoError(t, err)
	st, err = alice.syncer.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateInSync, st.State)
	assert.Equal(t, 1, st.RecordCount)

	clk.Advance(1000)
	_, err = alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Soup"})
	require.NoError(t, err)
	st, err = alice.syncer.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateAhead, st.State)
	assert.Equal(t, 1, st.LocalChanges.Created)
	assert.False(t, st.RemoteChanges.HasChanges())

	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	st, err = bob.syncer.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateBehind, st.State)
	assert.Equal(t, 1, st.RemoteChanges.Created)

	// Bob renames the shared recipe while alice's rename is already
	// published: diverged with one real conflict.
	clk.Advance(1000)
	aliceCopy, _, err := alice.planner.Recipe(ctx, recipe.ID)
	require.NoError(t, err)
	aliceCopy.Name = "Pasta Alfredo"
	require.NoError(t, alice.planner.UpdateRecipe(ctx, aliceCopy))
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	bobCopy, _, err := bob.planner.Recipe(ctx, recipe.ID)
	require.NoError(t, err)
	bobCopy.Name = "Pasta Carbonara"
	require.NoError(t, bob.planner.UpdateRecipe(ctx, bobCopy))

	st, err = bob.syncer.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateDiverged, st.State)
	assert.Equal(t, 1, st.Conflicts)
}

func TestSyncStatusDivergedWithoutConflicts(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()
	alice := newDevice(t, blobs, clk, "a")
	bob := newDevice(t, blobs, clk, "b")

	_, err := alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Pasta"})
	require.NoError(t, err)
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)
	_, err = bob.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	_, err = alice.planner.AddRecipe(ctx, RecipeDraft{Name: "Soup"})
	require.NoError(t, err)
	_, err = alice.syncer.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(1000)
	_, err = bob.planner.AddRecipe(ctx, RecipeDraft{Name: "Salad"})
	require.NoError(t, err)

	st, err := bob.syncer.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateDiverged, st.State)
	assert.Zero(t, st.Conflicts, "independent additions merge cleanly")
}

func TestSyncEncryptedPayloadEndToEnd(t *testing.T) {
	t.Parallel()

	blobs := blobstore.NewMemStore()
	clk := &testClock{ms: 1000}
	ctx := context.Background()

	store := newTestStore(t)
	codec := payload.NewCodec(payload.WithPassphrase("family-secret"))
	planner := NewPlanner(store, WithPlannerClock(clk.Now), WithPlannerIDs(seqIDs("a")))
	syncer := NewSyncService(store, blobs, codec, WithMerger(sync.NewMerger(sync.WithClock(clk.Now))))

	_, err := planner.AddRecipe(ctx, RecipeDraft{Name: "Secret Sauce"})
	require.NoError(t, err)
	_, err = syncer.Sync(ctx)
	require.NoError(t, err)

	// The blob is sealed: a device without the passphrase cannot read it.
	other := newTestStore(t)
	plain := NewSyncService(other, blobs, payload.NewCodec(), WithMerger(sync.NewMerger(sync.WithClock(clk.Now))))
	_, err = plain.Sync(ctx)
	require.ErrorIs(t, err, payload.ErrEncrypted)

	// A device sharing the passphrase syncs normally.
	second := newTestStore(t)
	sealed := NewSyncService(second, blobs, payload.NewCodec(payload.WithPassphrase("family-secret")),
		WithMerger(sync.NewMerger(sync.WithClock(clk.Now))))
	out, err := sealed.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionPulled, out.Action)
}

package mcp

import (
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/sous/internal/adapters/blobstore"
	"github.com/felixgeelhaar/sous/internal/adapters/payload"
	"github.com/felixgeelhaar/sous/internal/adapters/sqlite"
	"github.com/felixgeelhaar/sous/internal/app"
	"github.com/felixgeelhaar/sous/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// env bundles the application services one MCP server sits on.
type env struct {
	planner *app.Planner
	grocery *app.Grocery
	syncer  *app.SyncService
}

// newTestEnv builds services over a fresh local store and its own shared
// location. Use newTestEnvWith to simulate several devices on one location.
func newTestEnv(t *testing.T) *env {
	t.Helper()
	return newTestEnvWith(t, blobstore.NewMemStore())
}

func newTestEnvWith(t *testing.T, blobs ports.BlobStore) *env {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "sous.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &env{
		planner: app.NewPlanner(store),
		grocery: app.NewGrocery(store),
		syncer:  app.NewSyncService(store, blobs, payload.NewCodec()),
	}
}

func testVersionInfo() VersionInfo {
	return VersionInfo{Version: "test", Commit: "none", BuildDate: "unknown"}
}

// newTestServer creates an MCP server with all tools registered.
func newTestServer(t *testing.T, e *env) *mcp.Server {
	t.Helper()
	srv := mcp.NewServer(mcp.ServerInfo{Name: "test", Version: "1.0.0"})
	RegisterAll(srv, e.planner, e.grocery, e.syncer, testVersionInfo())
	return srv
}

func TestRegisterAll(t *testing.T) {
	srv := newTestServer(t, newTestEnv(t))

	// Verify all tools are registered
	tools := srv.Tools()
	toolNames := make(map[string]bool)
	for _, tool := range tools {
		toolNames[tool.Name] = true
	}

	assert.True(t, toolNames["sous_list_recipes"], "sous_list_recipes should be registered")
	assert.True(t, toolNames["sous_get_recipe"], "sous_get_recipe should be registered")
	assert.True(t, toolNames["sous_week_plan"], "sous_week_plan should be registered")
	assert.True(t, toolNames["sous_grocery_list"], "sous_grocery_list should be registered")
	assert.True(t, toolNames["sous_sync_status"], "sous_sync_status should be registered")
	assert.True(t, toolNames["sous_schedule_meal"], "sous_schedule_meal should be registered")
	assert.True(t, toolNames["sous_generate_groceries"], "sous_generate_groceries should be registered")
}

func TestToolDescriptions(t *testing.T) {
	srv := newTestServer(t, newTestEnv(t))

	descriptions := make(map[string]string)
	for _, tool := range srv.Tools() {
		descriptions[tool.Name] = tool.Description
		assert.NotEmpty(t, tool.Description, "%s should carry a description", tool.Name)
	}

	assert.Contains(t, descriptions["sous_schedule_meal"], "confirm=true")
	assert.Contains(t, descriptions["sous_sync_status"], "shared snapshot")
}

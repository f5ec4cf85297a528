package snapshot_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breakglass-dev/breakglass/domain/entities"
	"github.com/breakglass-dev/breakglass/infrastructure/snapshot"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "exceptions.yaml")
	store := snapshot.NewFileStore(snapshot.WithPath(path))

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exceptions := []*entities.Exception{
		{
			ID:        "exc-active",
			RuleRefs:  []string{"deny-exec"},
			Scope:     entities.Scope{Namespaces: []string{"prod-x"}},
			CreatedAt: t0,
			ExpiresAt: t0.Add(time.Hour),
			Status:    entities.StatusActive,
			Provenance: entities.Provenance{
				CreatedBy:     "alice",
				Justification: "debugging",
				IncidentID:    "INC-42",
			},
		},
		{
			ID:           "exc-revoked",
			RuleRefs:     []string{entities.WildcardRuleRef},
			CreatedAt:    t0,
			ExpiresAt:    t0.Add(2 * time.Hour),
			Status:       entities.StatusRevoked,
			StatusReason: "incident resolved",
		},
	}
	require.NoError(t, store.Save(exceptions))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "exc-active", loaded[0].ID)
	assert.Equal(t, entities.StatusActive, loaded[0].Status)
	assert.True(t, loaded[0].ExpiresAt.Equal(t0.Add(time.Hour)))
	assert.Equal(t, "INC-42", loaded[0].Provenance.IncidentID)

	// Terminal statuses survive the round trip.
	assert.Equal(t, entities.StatusRevoked, loaded[1].Status)
	assert.Equal(t, "incident resolved", loaded[1].StatusReason)
}

func TestFileStore_LoadMissingFileIsEmpty(t *testing.T) {
	store := snapshot.NewFileStore(snapshot.WithPath(filepath.Join(t.TempDir(), "nothing.yaml")))
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileStore_SecureDefaultPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "exceptions.yaml")
	store := snapshot.NewFileStore(snapshot.WithPath(path))
	require.NoError(t, store.Save(nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

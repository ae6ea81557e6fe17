package storage

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/aristath/coindeck/internal/testing"
)

type testDoc struct {
	Names []string `json:"names"`
}

func setupRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "portfolio")
	return NewRepository(db.Conn(), zerolog.Nop()), cleanup
}

func TestLoad_MissingNamespace(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()

	var doc testDoc
	found, err := repo.Load("holdings", 1, nil, &doc)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveAndLoad_Roundtrip(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()

	in := testDoc{Names: []string{"bitcoin", "ethereum"}}
	require.NoError(t, repo.Save("holdings", 1, in))

	var out testDoc
	found, err := repo.Load("holdings", 1, nil, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestLoad_MigratesOldVersions(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()

	// Version 0 payload: a bare string array, no envelope
	require.NoError(t, repo.Save("holdings", 0, []string{"bitcoin"}))

	migrate := func(fromVersion int, data json.RawMessage) (json.RawMessage, error) {
		switch fromVersion {
		case 0:
			var names []string
			if err := json.Unmarshal(data, &names); err != nil {
				return nil, err
			}
			return json.Marshal(testDoc{Names: names})
		default:
			return nil, fmt.Errorf("unexpected version %d", fromVersion)
		}
	}

	var out testDoc
	found, err := repo.Load("holdings", 1, migrate, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"bitcoin"}, out.Names)

	// The migrated document is written back: a second load without the
	// migration func must succeed.
	var again testDoc
	found, err = repo.Load("holdings", 1, nil, &again)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, out, again)
}

func TestLoad_RejectsNewerVersion(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()

	require.NoError(t, repo.Save("holdings", 5, testDoc{}))

	var out testDoc
	_, err := repo.Load("holdings", 1, nil, &out)
	assert.Error(t, err)
}

func TestLoad_MigrationRequiredButMissing(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()

	require.NoError(t, repo.Save("balance", 0, 42.0))

	var out testDoc
	_, err := repo.Load("balance", 1, nil, &out)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()

	require.NoError(t, repo.Save("watchlist", 1, testDoc{Names: []string{"solana"}}))
	require.NoError(t, repo.Delete("watchlist"))

	var out testDoc
	found, err := repo.Load("watchlist", 1, nil, &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSave_Overwrites(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()

	require.NoError(t, repo.Save("holdings", 1, testDoc{Names: []string{"a"}}))
	require.NoError(t, repo.Save("holdings", 1, testDoc{Names: []string{"b"}}))

	var out testDoc
	found, err := repo.Load("holdings", 1, nil, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"b"}, out.Names)
}

package filestore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/internhub/go-portal-gate/session"
	"github.com/internhub/go-portal-gate/session/filestore"
)

func newStore(t *testing.T) (*filestore.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := filestore.New(dir)
	require.NoError(t, err)
	return store, dir
}

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	store, _ := newStore(t)

	user := &session.User{
		ID:    "5",
		Name:  "A",
		Role:  session.RoleAdmin,
		Email: "a@b.com",
	}
	require.NoError(t, store.Save("t1", user))

	token, loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "t1", token)
	require.Equal(t, user, loaded)
}

func TestStore_LoadWithoutSession(t *testing.T) {
	store, _ := newStore(t)

	token, user, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, token)
	require.Nil(t, user)
}

func TestStore_LoadAfterClearIsAbsent(t *testing.T) {
	store, _ := newStore(t)

	require.NoError(t, store.Save("abc", &session.User{ID: "1", Role: session.RoleStudent}))
	require.NoError(t, store.Clear())

	token, user, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, token)
	require.Nil(t, user)
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	store, _ := newStore(t)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	require.NoError(t, store.Save("abc", nil))
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
}

func TestStore_GarbledFileBehavesAsAbsent(t *testing.T) {
	store, dir := newStore(t)

	require.NoError(t, store.Save("abc", &session.User{ID: "1", Role: session.RoleStudent}))

	sessionPath := filepath.Join(dir, "session.dat")
	require.NoError(t, os.WriteFile(sessionPath, []byte("not a sealed session"), 0o600))

	token, user, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, token)
	require.Nil(t, user)

	// The corrupt state was cleared, not left behind.
	_, statErr := os.Stat(sessionPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestStore_MissingKeyDiscardsSession(t *testing.T) {
	store, dir := newStore(t)

	require.NoError(t, store.Save("abc", &session.User{ID: "1", Role: session.RoleStudent}))
	require.NoError(t, os.Remove(filepath.Join(dir, "session.key")))

	token, user, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, token)
	require.Nil(t, user)
}

func TestStore_TokenOnlySession(t *testing.T) {
	store, _ := newStore(t)

	require.NoError(t, store.Save("bare-token", nil))

	token, user, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "bare-token", token)
	require.Nil(t, user)
}

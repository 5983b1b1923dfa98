package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kshivamiitk/classboard/models"
	"github.com/stretchr/testify/assert"
)

func TestIdentityStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	store := NewIdentityStore(path)

	identity := Identity{
		Role:         models.RoleStudent,
		ClassID:      "c1",
		StudentToken: "tok-1",
		Name:         "Asha",
	}
	assert.NoError(t, store.Persist(identity))

	loaded, found, err := store.Load()
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, identity, loaded)
}

func TestIdentityStore_MissingFile(t *testing.T) {
	store := NewIdentityStore(filepath.Join(t.TempDir(), "nope.json"))

	_, found, err := store.Load()
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestIdentityStore_PersistOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	store := NewIdentityStore(path)

	assert.NoError(t, store.Persist(Identity{Role: models.RoleStudent, ClassID: "c1", StudentToken: "old"}))
	assert.NoError(t, store.Persist(Identity{Role: models.RoleStudent, ClassID: "c1", StudentToken: "new"}))

	loaded, found, err := store.Load()
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "new", loaded.StudentToken)

	// No stray temp file left behind
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestIdentityStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	store := NewIdentityStore(path)

	assert.NoError(t, store.Persist(Identity{Role: models.RoleTeacher, ClassID: "c1", TeacherKey: "ABC123"}))
	assert.NoError(t, store.Clear())

	_, found, err := store.Load()
	assert.NoError(t, err)
	assert.False(t, found)

	// Clearing an already-missing identity is fine
	assert.NoError(t, store.Clear())
}

func TestIdentityStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	assert.NoError(t, os.WriteFile(path, []byte("{torn"), 0o600))

	_, found, err := NewIdentityStore(path).Load()
	assert.Error(t, err)
	assert.False(t, found)
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/buntdb"
	"nyiyui.ca/hato/daisha/config"
)

func open(t *testing.T) *Store {
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScene(t *testing.T) {
	s := open(t)
	demo := config.Demo()
	_, err := s.Scene(demo.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutScene(demo))
	got, err := s.Scene(demo.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(demo, got); diff != "" {
		t.Fatalf("scene (-want +got):\n%s", diff)
	}

	infos, err := s.Scenes()
	require.NoError(t, err)
	assert.Equal(t, []SceneInfo{{ID: demo.ID, Name: "demo"}}, infos)

	require.NoError(t, s.DeleteScene(demo.ID))
	assert.ErrorIs(t, s.DeleteScene(demo.ID), ErrNotFound)
	infos, err = s.Scenes()
	require.NoError(t, err)
	assert.Empty(t, infos)

	demo.ID = uuid.Nil
	assert.Error(t, s.PutScene(demo))
}

func TestSharedTable(t *testing.T) {
	s := open(t)
	demo := config.Demo()
	shuttle := demo.Tables["shuttle"]
	demo.Tables = nil
	require.NoError(t, s.PutScene(demo))

	_, err := s.Scene(demo.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutTable("shuttle", shuttle))
	got, err := s.Scene(demo.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(shuttle, got.Tables["shuttle"]); diff != "" {
		t.Fatalf("table (-want +got):\n%s", diff)
	}

	tables, err := s.Tables()
	require.NoError(t, err)
	assert.Len(t, tables, 1)
	tbl, err := s.Table("shuttle")
	require.NoError(t, err)
	assert.Len(t, tbl.Entries, 2)
	_, err = s.Table("local")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.PutTable("a:b", shuttle))
	assert.Error(t, s.PutTable("", shuttle))
}

func TestBadEntries(t *testing.T) {
	s := open(t)
	require.NoError(t, s.PutScene(config.Demo()))
	require.NoError(t, s.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set("scene:not-a-uuid:data", "{}", nil); err != nil {
			return err
		}
		if _, _, err := tx.Set(sceneKey(uuid.New()), "{", nil); err != nil {
			return err
		}
		_, _, err := tx.Set(tableKey("broken"), "[", nil)
		return err
	}))
	infos, err := s.Scenes()
	require.NoError(t, err)
	assert.Len(t, infos, 1)
	tables, err := s.Tables()
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daisha.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.PutScene(config.Demo()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Scene(config.Demo().ID)
	assert.NoError(t, err)
}

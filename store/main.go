// Package store keeps scenes and routing tables in a buntdb database.
//
// Values are JSON. Keys are scene:<uuid>:data and table:<name>:data.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/buntdb"
	"go.uber.org/zap"
	"nyiyui.ca/hato/daisha/config"
)

var ErrNotFound = errors.New("not found")

const (
	scenePattern = "scene:*:data"
	tablePattern = "table:*:data"
)

func sceneKey(id uuid.UUID) string { return fmt.Sprintf("scene:%s:data", id) }
func tableKey(name string) string  { return fmt.Sprintf("table:%s:data", name) }

// keyName returns the middle part of a key like prefix:<name>:data.
func keyName(key, prefix string) (string, bool) {
	if !strings.HasPrefix(key, prefix+":") || !strings.HasSuffix(key, ":data") {
		return "", false
	}
	return key[len(prefix)+1 : len(key)-len(":data")], true
}

type Store struct {
	db *buntdb.DB
}

// Open opens the database at path. ":memory:" gives a database that isn't persisted.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	var conf buntdb.Config
	if err := db.ReadConfig(&conf); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	conf.SyncPolicy = buntdb.Always
	if err := db.SetConfig(conf); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutScene saves scene under its ID, replacing any scene with the same ID.
func (s *Store) PutScene(scene config.Scene) error {
	if scene.ID == uuid.Nil {
		return errors.New("put scene: no id")
	}
	data, err := json.Marshal(scene)
	if err != nil {
		return fmt.Errorf("put scene: %w", err)
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(sceneKey(scene.ID), string(data), nil)
		return err
	})
}

// Scene loads a scene.
// Tables its vehicles use that the scene doesn't define itself are taken from the stored tables.
func (s *Store) Scene(id uuid.UUID) (config.Scene, error) {
	var scene config.Scene
	err := s.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(sceneKey(id))
		if errors.Is(err, buntdb.ErrNotFound) {
			return fmt.Errorf("scene %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(value), &scene); err != nil {
			return fmt.Errorf("scene %s: %w", id, err)
		}
		for _, v := range scene.Vehicles {
			if v.Table == "" {
				continue
			}
			if _, ok := scene.Tables[v.Table]; ok {
				continue
			}
			t, err := getTable(tx, v.Table)
			if err != nil {
				return fmt.Errorf("scene %s: vehicle %s: %w", id, v.Name, err)
			}
			if scene.Tables == nil {
				scene.Tables = map[string]config.Table{}
			}
			scene.Tables[v.Table] = t
		}
		return nil
	})
	if err != nil {
		return config.Scene{}, err
	}
	if err := scene.Validate(); err != nil {
		return config.Scene{}, fmt.Errorf("scene %s: %w", id, err)
	}
	return scene, nil
}

func (s *Store) DeleteScene(id uuid.UUID) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(sceneKey(id))
		if errors.Is(err, buntdb.ErrNotFound) {
			return fmt.Errorf("scene %s: %w", id, ErrNotFound)
		}
		return err
	})
}

type SceneInfo struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Scenes lists stored scenes. Entries that fail to parse are logged and skipped.
func (s *Store) Scenes() ([]SceneInfo, error) {
	var res []SceneInfo
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(scenePattern, func(key, value string) bool {
			raw, ok := keyName(key, "scene")
			if !ok {
				return true
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				zap.S().Errorw("parsing key failed",
					"key", key,
					"value", value)
				return true
			}
			var info SceneInfo
			if err := json.Unmarshal([]byte(value), &info); err != nil {
				zap.S().Errorw("unmarshalling failed",
					"key", key,
					"value", value)
				return true
			}
			info.ID = id
			res = append(res, info)
			return true
		})
	})
	return res, err
}

func (s *Store) PutTable(name string, t config.Table) error {
	if name == "" || strings.Contains(name, ":") {
		return fmt.Errorf("put table: bad name %q", name)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("put table %s: %w", name, err)
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(tableKey(name), string(data), nil)
		return err
	})
}

func getTable(tx *buntdb.Tx, name string) (config.Table, error) {
	value, err := tx.Get(tableKey(name))
	if errors.Is(err, buntdb.ErrNotFound) {
		return config.Table{}, fmt.Errorf("table %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return config.Table{}, err
	}
	var t config.Table
	if err := json.Unmarshal([]byte(value), &t); err != nil {
		return config.Table{}, fmt.Errorf("table %s: %w", name, err)
	}
	return t, nil
}

func (s *Store) Table(name string) (t config.Table, err error) {
	err = s.db.View(func(tx *buntdb.Tx) error {
		t, err = getTable(tx, name)
		return err
	})
	return
}

// Tables returns every stored table. Entries that fail to parse are logged and skipped.
func (s *Store) Tables() (map[string]config.Table, error) {
	res := map[string]config.Table{}
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(tablePattern, func(key, value string) bool {
			name, ok := keyName(key, "table")
			if !ok {
				return true
			}
			var t config.Table
			if err := json.Unmarshal([]byte(value), &t); err != nil {
				zap.S().Errorw("unmarshalling failed",
					"key", key,
					"value", value)
				return true
			}
			res[name] = t
			return true
		})
	})
	return res, err
}

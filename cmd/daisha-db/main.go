package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nyiyui.ca/hato/daisha/config"
	"nyiyui.ca/hato/daisha/store"
)

var dbPath string
var scene string
var table string
var mode string

func main() {
	flag.StringVar(&dbPath, "db-path", "./daisha.db", "path to database")
	flag.StringVar(&scene, "scene", "", "scene ID to use")
	flag.StringVar(&table, "table", "", "routing table name to use")
	flag.StringVar(&mode, "mode", "", "read, write, list, or delete")
	flag.Parse()
	dev, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(dev)
	defer zap.S().Sync()

	if scene != "" && table != "" {
		zap.S().Fatal("only one of -scene and -table")
	}

	err = main2()
	if err != nil {
		zap.S().Fatal(err)
	}
}

func main2() error {
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	switch mode {
	case "list":
		tables, err := db.Tables()
		if err != nil {
			return err
		}
		for name, t := range tables {
			fmt.Printf("table\t%s\t%d entries\n", name, len(t.Entries))
		}
		infos, err := db.Scenes()
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("scene\t%s\t%s\n", info.ID, info.Name)
		}
		return nil
	case "read":
		if table != "" {
			t, err := db.Table(table)
			if err != nil {
				return err
			}
			return enc.Encode(t)
		}
		id, err := uuid.Parse(scene)
		if err != nil {
			return fmt.Errorf("scene %s is not a valid UUID: %w", scene, err)
		}
		s, err := db.Scene(id)
		if err != nil {
			return err
		}
		zap.S().Infof("found %s", s.Name)
		return enc.Encode(s)
	case "write":
		if table != "" {
			var t config.Table
			if err := json.NewDecoder(os.Stdin).Decode(&t); err != nil {
				return fmt.Errorf("unmarshalling failed: %w", err)
			}
			if err := db.PutTable(table, t); err != nil {
				return err
			}
			zap.S().Infof("saved table %s", table)
			return nil
		}
		var s config.Scene
		if err := json.NewDecoder(os.Stdin).Decode(&s); err != nil {
			return fmt.Errorf("unmarshalling failed: %w", err)
		}
		if scene != "" {
			id, err := uuid.Parse(scene)
			if err != nil {
				return fmt.Errorf("scene %s is not a valid UUID: %w", scene, err)
			}
			s.ID = id
		}
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if err := db.PutScene(s); err != nil {
			return err
		}
		zap.S().Infof("saved scene %s", s.ID)
		return nil
	case "delete":
		id, err := uuid.Parse(scene)
		if err != nil {
			return fmt.Errorf("scene %s is not a valid UUID: %w", scene, err)
		}
		return db.DeleteScene(id)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

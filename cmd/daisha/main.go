package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nyiyui.ca/hato/daisha/config"
	"nyiyui.ca/hato/daisha/kujo"
	"nyiyui.ca/hato/daisha/sim"
	"nyiyui.ca/hato/daisha/store"
)

var (
	scenePath string
	sceneID   string
	dbPath    string
	save      bool
	addr      string
	interval  time.Duration
)

func main() {
	defer zap.S().Sync()
	level := zap.LevelFlag("log-level", zap.DebugLevel, "set log level")
	flag.StringVar(&scenePath, "scene", "", "path to scene file (default: built-in demo)")
	flag.StringVar(&sceneID, "scene-id", "", "load this scene from the database instead")
	flag.StringVar(&dbPath, "db-path", "", "path to database")
	flag.BoolVar(&save, "save", false, "save the scene to the database before running")
	flag.StringVar(&addr, "addr", "0.0.0.0:8001", "address to serve snapshots on")
	flag.DurationVar(&interval, "interval", 50*time.Millisecond, "simulation step")
	flag.Parse()
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(*level)
	dev, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(dev)

	err = main2()
	if err != nil && !errors.Is(err, context.Canceled) {
		zap.S().Fatal(err)
	}
}

func loadScene() (config.Scene, error) {
	var db *store.Store
	if dbPath != "" {
		var err error
		db, err = store.Open(dbPath)
		if err != nil {
			return config.Scene{}, err
		}
		defer db.Close()
	}
	if sceneID != "" {
		if db == nil {
			return config.Scene{}, errors.New("-scene-id needs -db-path")
		}
		id, err := uuid.Parse(sceneID)
		if err != nil {
			return config.Scene{}, err
		}
		return db.Scene(id)
	}
	scene := config.Demo()
	if scenePath != "" {
		var err error
		scene, err = config.Load(scenePath)
		if err != nil {
			return config.Scene{}, err
		}
	}
	if save {
		if db == nil {
			return config.Scene{}, errors.New("-save needs -db-path")
		}
		if err := db.PutScene(scene); err != nil {
			return config.Scene{}, err
		}
		zap.S().Infof("saved scene %s (%s)", scene.Name, scene.ID)
	}
	return scene, nil
}

func main2() error {
	scene, err := loadScene()
	if err != nil {
		return err
	}
	si, err := sim.New(scene)
	if err != nil {
		return err
	}
	for _, err := range si.TopologyErrors {
		zap.S().Warnw("topology error", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	zap.S().Infof("starting kujo on %s…", addr)
	kujoServer := kujo.NewServer(si)
	defer kujoServer.Close()
	srv := &http.Server{Addr: addr, Handler: kujoServer.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Errorf("kujo: %s", err)
			stop()
		}
	}()
	defer srv.Close()

	zap.S().Infof("running scene %s every %s", scene.Name, interval)
	return si.Run(ctx, interval)
}

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"nyiyui.ca/hato/daisha/config"
	"nyiyui.ca/hato/daisha/network"
	"nyiyui.ca/hato/daisha/points"
	"nyiyui.ca/hato/daisha/preset"
	"nyiyui.ca/hato/daisha/route"
	"nyiyui.ca/hato/daisha/router"
)

var (
	scenePath  string
	presetName string
	from, to   int
	fromSide   string
	toSide     string
	heading    string
)

func main() {
	defer zap.S().Sync()
	level := zap.LevelFlag("log-level", zap.InfoLevel, "set log level")
	flag.StringVar(&scenePath, "scene", "", "path to scene file")
	flag.StringVar(&presetName, "preset", "loop", "layout to use without -scene: loop, line, or siding")
	flag.IntVar(&from, "from", 0, "start anchor")
	flag.StringVar(&fromSide, "from-side", "A", "start side")
	flag.IntVar(&to, "to", 2, "end anchor")
	flag.StringVar(&toSide, "to-side", "A", "end side")
	flag.StringVar(&heading, "heading", "", "heading at the start as x,y,z (default: any)")
	flag.Parse()
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(*level)
	dev, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(dev)

	if err := main2(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func topology() (points.Topology, error) {
	if scenePath != "" {
		scene, err := config.Load(scenePath)
		if err != nil {
			return points.Topology{}, err
		}
		return scene.Topology, nil
	}
	switch presetName {
	case "loop":
		return preset.Loop(10), nil
	case "line":
		return preset.Line(5, 10), nil
	case "siding":
		return preset.LoopWithSiding(10), nil
	default:
		return points.Topology{}, fmt.Errorf("unknown preset %q", presetName)
	}
}

func parseVec(s string) (mgl64.Vec3, error) {
	var v mgl64.Vec3
	if s == "" {
		return v, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("heading %q: want x,y,z", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return v, fmt.Errorf("heading %q: %w", s, err)
		}
		v[i] = f
	}
	return v, nil
}

func ref(net *network.Network, anchor int, side string) (route.NodeRef, error) {
	s, err := route.ParseSide(side)
	if err != nil {
		return route.NodeRef{}, err
	}
	node, ok := net.ByAnchor(points.Handle(anchor))
	if !ok {
		return route.NodeRef{}, fmt.Errorf("%d is not an anchor", anchor)
	}
	return route.NodeRef{Node: node, Side: s}, nil
}

func main2() error {
	t, err := topology()
	if err != nil {
		return err
	}
	g, errs := points.Load(t)
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "warning: %s\n", err)
	}
	net, err := network.Build(g, nil)
	if err != nil {
		return err
	}
	start, err := ref(net, from, fromSide)
	if err != nil {
		return fmt.Errorf("from: %w", err)
	}
	end, err := ref(net, to, toSide)
	if err != nil {
		return fmt.Errorf("to: %w", err)
	}
	h, err := parseVec(heading)
	if err != nil {
		return err
	}
	var r route.Route
	if state := router.New(net).Route(start, h, end, &r); state != route.StateSuccess {
		return fmt.Errorf("%s → %s: %s", start, end, state)
	}
	for i, s := range r.Sections {
		if s.Curve == nil {
			fmt.Printf("%d\tnode %d\t(end)\n", i, s.Node)
			continue
		}
		dir := "forward"
		if s.Reverse {
			dir = "reverse"
		}
		fmt.Printf("%d\tnode %d\tcurve %d %s\t%.3f\n", i, s.Node, s.CurveI, dir, s.Length())
	}
	fmt.Printf("total\t%.3f\n", r.Length())
	return nil
}

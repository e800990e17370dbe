package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/talkincode/toughpos/config"
	"github.com/talkincode/toughpos/internal/adminapi"
	"github.com/talkincode/toughpos/internal/app"
	"github.com/talkincode/toughpos/internal/webserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var version = "develop"

var (
	h        = flag.Bool("h", false, "help usage")
	showVer  = flag.Bool("v", false, "show version")
	conffile = flag.String("c", "", "config yaml file")
	initdb   = flag.Bool("initdb", false, "drop and recreate every table, then seed defaults")
	printCfg = flag.Bool("printcfg", false, "print effective config")
	demoData = flag.Bool("demo", false, "seed a demo catalog into an empty database")
)

func printHelp() {
	if *h {
		ustr := fmt.Sprintf("toughpos version: %s, Usage: toughpos -h\nOptions:", version)
		_, _ = fmt.Fprintln(os.Stderr, ustr)
		flag.PrintDefaults()
		os.Exit(0)
	}
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version)
		os.Exit(0)
	}
	printHelp()

	cfg, err := config.LoadConfig(*conffile)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "load config error:", err)
		os.Exit(1)
	}
	if *demoData {
		cfg.Pos.DemoData = true
	}

	if *printCfg {
		bs, _ := yaml.Marshal(cfg)
		fmt.Println(string(bs))
		os.Exit(0)
	}

	application := app.NewApplication(cfg)
	if err := application.Init(cfg); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "init error:", err)
		os.Exit(1)
	}
	defer application.Release()

	if *initdb {
		application.InitDb()
		application.Seed()
		zap.S().Info("database initialized")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application.StartBackgroundJobs(ctx)

	adminapi.Init()
	server := webserver.NewAdminServer(application)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	if err := g.Wait(); err != nil {
		zap.S().Errorf("server exited: %v", err)
	}
}

// smadventure runs a Sentient Mushes: Adventure world from a directory of
// Lua content, driven from the terminal and optionally watched over a
// websocket feed.
//
// Usage: smadventure [flags] [content_directory]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sentientmushes/smadventure/cli"
	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/engine/broadcast"
	"github.com/sentientmushes/smadventure/feed"
	"github.com/sentientmushes/smadventure/game"
	"github.com/sentientmushes/smadventure/loader"
	"github.com/sentientmushes/smadventure/logger"
	"github.com/sentientmushes/smadventure/tui"
	"github.com/sentientmushes/smadventure/types"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// options holds the parsed command line.
type options struct {
	content     string
	seed        int64
	savePath    string
	listen      string
	logLevel    string
	logFormat   string
	plain       bool
	script      string
	pace        time.Duration
	pickupLimit int
	player      string
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if n, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return n
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func parseFlags(args []string) (options, bool, error) {
	var o options
	var showVersion bool
	logCfg := logger.FromEnv()
	defaults := game.DefaultConfig()
	player := os.Getenv("USER")
	if player == "" {
		player = "Player"
	}

	fs := flag.NewFlagSet("smadventure", flag.ContinueOnError)
	fs.StringVar(&o.content, "content", envString("SMA_CONTENT", "content"), "Directory of Lua content")
	fs.Int64Var(&o.seed, "seed", envInt64("SMA_SEED", 0), "World seed (0 for random)")
	fs.StringVar(&o.savePath, "save", os.Getenv("SMA_SAVE"), "Save file loaded at start and written on exit")
	fs.StringVar(&o.listen, "listen", os.Getenv("SMA_LISTEN"), "Address for the spectator websocket feed (empty: off)")
	fs.StringVar(&o.logLevel, "log-level", logCfg.Level, "Log level")
	fs.StringVar(&o.logFormat, "log-format", logCfg.Format, "Log format: text or json")
	fs.BoolVar(&o.plain, "plain", false, "Use the plain line driver instead of the terminal UI")
	fs.StringVar(&o.script, "script", "", "Play commands from a file with the plain driver")
	fs.DurationVar(&o.pace, "pace", envDuration("SMA_PACE", broadcast.DefaultPace), "Pause between delivered broadcasts")
	fs.IntVar(&o.pickupLimit, "pickup-limit", defaults.PickupLimit, "Items picked up before a turn ends")
	fs.StringVar(&o.player, "player", player, "Name of the local player")
	fs.BoolVar(&showVersion, "version", false, "Print the version and exit")
	if err := fs.Parse(args); err != nil {
		return o, false, err
	}
	if fs.NArg() > 0 {
		o.content = fs.Arg(0)
	}
	if o.seed == 0 {
		o.seed = time.Now().UnixNano()
	}
	return o, showVersion, nil
}

func main() {
	o, showVersion, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if showVersion {
		fmt.Printf("smadventure %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	log, err := logger.New(logger.Config{Level: o.logLevel, Format: o.logFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, log); err != nil {
		log.WithError(err).Error("smadventure stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, log *logrus.Logger) error {
	content, err := loader.Load(o.content, loader.WithLogger(log))
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}
	defer content.Close()

	hub := broadcast.New(broadcast.WithLogger(log), broadcast.WithPace(o.pace))
	w := content.NewWorld(engine.WithSeed(o.seed), engine.WithLogger(log), engine.WithHub(hub))

	cfg := game.DefaultConfig()
	cfg.PickupLimit = o.pickupLimit
	session := game.New(w, cfg, log)

	if err := restore(session, o.savePath); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"content":  o.content,
		"seed":     o.seed,
		"entities": len(w.Entities()),
		"places":   len(w.Places()),
	}).Info("world ready")

	if o.listen != "" {
		srv := &http.Server{
			Addr:              o.listen,
			Handler:           feedMux(hub, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("feed server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.WithField("addr", o.listen).Info("spectator feed listening")
	}

	switch {
	case o.script != "":
		f, err := os.Open(o.script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		c := cli.New(session, o.player)
		c.In = f
		c.EchoInput = true
		c.Run(ctx)

	// The plain driver flushes the hub itself after every command.
	case o.plain || !isTerminal():
		cli.New(session, o.player).Run(ctx)

	default:
		loopCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() { _ = hub.Run(loopCtx) }()
		if err := tui.Run(ctx, session, o.player); err != nil {
			return err
		}
	}

	return persist(session, o.savePath)
}

// restore loads the save file when there is one, otherwise populates the
// world from its spawn list.
func restore(s *game.Session, path string) error {
	if path != "" {
		err := s.LoadFile(path)
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := s.World().Populate(); err != nil {
		s.World().Log().WithError(err).Warn("some spawns failed")
	}
	return nil
}

func persist(s *game.Session, path string) error {
	if path == "" {
		return nil
	}
	return s.SaveFile(path)
}

func feedMux(hub *broadcast.Hub, log logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/feed", feed.Handler(hub, types.LevelInfo, log))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

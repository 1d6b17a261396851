// Mirrorloop is an LLM-narrated four-world dating sim driven by Lua content.
// Usage: mirrorloop [--version] [--plain] [--script <file>] [--name <player>] [--gender male|female]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nathoo/mirrorloop/cli"
	"github.com/nathoo/mirrorloop/config"
	"github.com/nathoo/mirrorloop/engine"
	"github.com/nathoo/mirrorloop/engine/save"
	"github.com/nathoo/mirrorloop/loader"
	"github.com/nathoo/mirrorloop/narrator"
	"github.com/nathoo/mirrorloop/telemetry"
	"github.com/nathoo/mirrorloop/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	plain := false
	var scriptFile, playerName, playerGender string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("mirrorloop %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--script":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--script requires a file path\n")
				os.Exit(1)
			}
			i++
			scriptFile = args[i]
		case "--name":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--name requires a value\n")
				os.Exit(1)
			}
			i++
			playerName = args[i]
		case "--gender":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--gender requires male or female\n")
				os.Exit(1)
			}
			i++
			playerGender = args[i]
		default:
			fmt.Fprintf(os.Stderr, "Unknown flag: %s\n", args[i])
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Load and compile Lua game content.
	cat, err := loader.Load(cfg.ContentDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading content: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening save store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	client, err := openNarrator(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting narrator: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	var tracker telemetry.Tracker = telemetry.Nop{}
	if cfg.Debug {
		tracker = telemetry.NewSlog(logger)
	}

	eng := engine.New(cat, engine.Options{
		Narrator: client,
		Store:    store,
		Tracker:  tracker,
		Logger:   logger,
	})

	// Resume the autosave when one exists, otherwise begin a playthrough.
	if ok, err := eng.HasSave(ctx); err == nil && ok {
		if err := eng.Load(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading autosave: %v\n", err)
			os.Exit(1)
		}
	}
	if !eng.Session().Started {
		if playerName == "" {
			playerName = "旅人"
		}
		if err := eng.StartSession(playerName, playerGender); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting session: %v\n", err)
			os.Exit(1)
		}
	}

	// Script mode: read input from a file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		fmt.Printf("%s — %s\n\n", cat.Story.Title, cat.Story.Subtitle)
		c := cli.New(eng)
		c.In = f
		c.EchoInput = true
		if err := c.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Use plain CLI if --plain flag or stdout is not a terminal.
	if plain || !isTerminal() {
		fmt.Printf("%s — %s\n\n", cat.Story.Title, cat.Story.Subtitle)
		if err := cli.New(eng).Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := tui.Run(eng); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore selects the SQLite store when a DB path is configured, else the
// per-slot file store.
func openStore(cfg config.Config) (save.Store, func(), error) {
	if cfg.SaveDB != "" {
		st, err := save.OpenSQLiteStore(cfg.SaveDB)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	}
	st, err := save.NewFileStore(cfg.SaveDir)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {}, nil
}

// openNarrator connects Gemini when an API key is configured; without one
// the scripted fallback keeps the game playable offline.
func openNarrator(ctx context.Context, cfg config.Config) (narrator.Client, error) {
	if cfg.GeminiAPIKey != "" {
		return narrator.NewGemini(ctx, cfg.GeminiAPIKey, cfg.NarratorModel)
	}
	fmt.Fprintln(os.Stderr, "GEMINI_API_KEY not set; using the offline scripted narrator.")
	return &narrator.Scripted{Replies: []string{
		"时空裂隙的回声在耳边低语，世界静静等待着你的下一步。\n\n1. 环顾四周\n2. 寻找线索\n3. 查看碎片探测器\n4. 自由行动",
	}}, nil
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

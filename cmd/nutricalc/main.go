package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/pageza/nutricalc/backend/config"
	"github.com/pageza/nutricalc/backend/internal/cli"
	"github.com/pageza/nutricalc/backend/internal/database"
	"github.com/pageza/nutricalc/backend/internal/nutrition"
	"github.com/pageza/nutricalc/backend/internal/service"
	"github.com/pageza/nutricalc/backend/internal/store"
)

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nutricalc_history")
}

func main() {
	dbPath := flag.String("db", "nutricalc.db", "sqlite database path")
	enginePath := flag.String("engine-config", "", "JSONC engine configuration file")
	seed := flag.Bool("seed", false, "load the sample catalog before starting")
	flag.Parse()

	engine, err := config.LoadEngineConfig(*enginePath)
	if err != nil {
		log.Fatalf("Failed to load engine configuration: %v", err)
	}

	db, err := database.Open(&config.Config{DBDriver: config.DriverSQLite, DBPath: *dbPath})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	st := store.New(db)
	ctx := context.Background()
	if *seed {
		if err := st.SeedSample(ctx); err != nil {
			log.Fatalf("Failed to seed sample catalog: %v", err)
		}
	}

	meal, err := service.NewMealService(st, engine)
	if err != nil {
		log.Fatalf("Failed to create meal service: %v", err)
	}

	if err := repl(ctx, cli.NewShell(meal, st, engine, os.Stdout)); err != nil {
		log.Fatal(err)
	}
}

func repl(ctx context.Context, shell *cli.Shell) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(shell.Complete)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if path := historyFile(); path != "" {
			if f, err := os.Create(path); err == nil {
				_, _ = line.WriteHistory(f)
				f.Close()
			}
		}
	}()

	fmt.Println("nutricalc - type 'help' for available commands.")
	for {
		input, err := line.Prompt("nutricalc> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		err = shell.Exec(ctx, input)
		switch {
		case errors.Is(err, cli.ErrQuit):
			return nil
		case nutrition.IsInternalError(err):
			fmt.Fprintf(os.Stderr, "internal error, the meal was left unchanged: %v\n", err)
		case err != nil:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/pageza/nutricalc/backend/config"
	"github.com/pageza/nutricalc/backend/internal/database"
	"github.com/pageza/nutricalc/backend/internal/middleware"
	"github.com/pageza/nutricalc/backend/internal/service"
	"github.com/pageza/nutricalc/backend/internal/store"
)

func main() {
	seed := flag.Bool("seed", false, "Load the sample CIQUAL catalog after migrating")
	dbPath := flag.String("db", "", "sqlite database path, overrides DB_PATH")
	operator := flag.String("operator", "", "create an API operator with this username")
	operatorName := flag.String("operator-name", "", "display name of the new operator")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dbPath != "" {
		cfg.DBDriver = config.DriverSQLite
		cfg.DBPath = *dbPath
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	fmt.Println("Schema migrated successfully.")

	if *seed {
		if err := store.New(db).SeedSample(context.Background()); err != nil {
			log.Fatalf("Failed to seed sample catalog: %v", err)
		}
		fmt.Println("Sample catalog loaded.")
	}

	if *operator != "" {
		password := os.Getenv("OPERATOR_PASSWORD")
		if password == "" {
			log.Fatal("OPERATOR_PASSWORD must be set to create an operator")
		}
		auth := service.NewAuthService(db, middleware.NewTokenService(cfg.JWTSecret))
		op, err := auth.Register(context.Background(), *operator, *operatorName, password)
		if err != nil {
			log.Fatalf("Failed to create operator: %v", err)
		}
		fmt.Printf("Operator %s created (%s).\n", op.Username, op.ID)
	}
}

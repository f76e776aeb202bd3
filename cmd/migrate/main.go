// Command migrate applies or rolls back the database schema.
package main

import (
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"

	"github.com/felag/mailengine/internal/config"
	"github.com/felag/mailengine/internal/database"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config.yaml (optional)")
		down       = flag.Bool("down", false, "roll back one migration instead of applying all")
	)
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if *down {
		m, err := database.NewMigrator(cfg.Database.URL)
		if err != nil {
			log.Fatalf("create migrator: %v", err)
		}
		defer m.Close()
		if err := m.Steps(-1); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("roll back: %v", err)
		}
		log.Println("Rolled back one migration")
		return
	}

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("Migrations applied")
}

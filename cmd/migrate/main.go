// Command migrate inspects and changes the database schema.
//
//	migrate up                 apply pending SQL migrations
//	migrate auto               run GORM AutoMigrate over every model
//	migrate status             show the schema mode and pending migrations
//	migrate down <version>     revert one migration
//	migrate create <name>      write an empty up/down pair into -dir
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"socialnet/internal/config"
	"socialnet/internal/database"

	"gorm.io/gorm"
)

var dir = flag.String("dir", "internal/database/migrations", "migrations directory used by create")

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [-dir path] up|auto|status|down <version>|create <name>")
	}
	flag.Parse()
	if err := run(context.Background(), flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	if args[0] == "create" {
		if len(args) < 2 {
			return errors.New("create needs a name")
		}
		return create(args[1])
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{SkipSchema: true})
	if err != nil {
		return err
	}

	switch args[0] {
	case "up":
		return up(ctx, db)
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		log.Println("AutoMigrate finished")
		return nil
	case "status":
		return status(ctx, db, cfg)
	case "down":
		if len(args) < 2 {
			return errors.New("down needs a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad version %q", args[1])
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return err
		}
		log.Printf("reverted %06d", version)
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func up(ctx context.Context, db *gorm.DB) error {
	ms, err := database.Migrations()
	if err != nil {
		return err
	}
	applied, err := database.NewMigrator(db, ms).Up(ctx)
	for _, m := range applied {
		log.Printf("applied %s", m)
	}
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		log.Println("schema is up to date")
	}
	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("mode=%s env=%s sql=%t automigrate=%t\n", st.Mode, st.Environment, st.SQL, st.AutoMigrate)
	for _, l := range st.Applied {
		fmt.Printf("  applied  %06d_%s  %s\n", l.Version, l.Name, l.AppliedAt.Format("2006-01-02 15:04"))
	}
	for _, m := range st.Pending {
		fmt.Printf("  pending  %s\n", m)
	}
	return nil
}

func create(name string) error {
	ms, err := database.LoadMigrations(os.DirFS(*dir), ".")
	if err != nil {
		return err
	}
	up, down := database.NextMigrationFiles(ms, name)
	for _, f := range []string{up, down} {
		p := filepath.Join(*dir, f)
		if err := os.WriteFile(p, []byte("-- "+f+"\n"), 0o644); err != nil {
			return err
		}
		fmt.Println(p)
	}
	return nil
}

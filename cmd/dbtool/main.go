// Package main inspects and resets the development database.
package main

import (
	"fmt"
	"log"
	"os"

	"socialnet/internal/config"
	"socialnet/internal/database"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/dbtool constraints [table]   - List foreign key, unique and check constraints")
	fmt.Println("  go run ./cmd/dbtool columns <table>       - List the columns of a table")
	fmt.Println("  go run ./cmd/dbtool counts                - Row count of every application table")
	fmt.Println("  go run ./cmd/dbtool nuke --yes            - Drop and recreate the public schema (development only)")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Inspection must not mutate the schema it is looking at.
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{SkipSchema: true})
	if err != nil {
		log.Fatal(err)
	}

	switch os.Args[1] {
	case "constraints":
		table := ""
		if len(os.Args) > 2 {
			table = os.Args[2]
		}
		listConstraints(db, table)
	case "columns":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		listColumns(db, os.Args[2])
	case "counts":
		countRows(db)
	case "nuke":
		if len(os.Args) < 3 || os.Args[2] != "--yes" {
			log.Fatal("refusing to nuke without --yes")
		}
		if cfg.IsProduction() {
			log.Fatal("refusing to nuke a production database")
		}
		nuke(db)
	default:
		usage()
		os.Exit(1)
	}
}

func listConstraints(db *gorm.DB, table string) {
	var result []struct {
		Relname string `gorm:"column:relname"`
		Conname string `gorm:"column:conname"`
		Def     string `gorm:"column:def"`
	}
	q := `SELECT r.relname, c.conname, pg_get_constraintdef(c.oid) AS def
		FROM pg_constraint c
		JOIN pg_class r ON c.conrelid = r.oid
		JOIN pg_namespace n ON n.oid = r.relnamespace
		WHERE n.nspname = 'public'`
	args := []interface{}{}
	if table != "" {
		q += " AND r.relname = ?"
		args = append(args, table)
	}
	q += " ORDER BY r.relname, c.conname"

	if err := db.Raw(q, args...).Scan(&result).Error; err != nil {
		log.Fatalf("list constraints: %v", err)
	}
	if len(result) == 0 {
		fmt.Println("No constraints found.")
		return
	}
	for _, r := range result {
		fmt.Printf(" - %s on %s: %s\n", r.Conname, r.Relname, r.Def)
	}
}

func listColumns(db *gorm.DB, table string) {
	var columns []struct {
		ColumnName string `gorm:"column:column_name"`
		DataType   string `gorm:"column:data_type"`
		Nullable   string `gorm:"column:is_nullable"`
	}
	err := db.Raw(`SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = ?
		ORDER BY ordinal_position`, table).Scan(&columns).Error
	if err != nil {
		log.Fatalf("list columns: %v", err)
	}
	if len(columns) == 0 {
		fmt.Printf("Table %s not found.\n", table)
		return
	}
	fmt.Printf("Columns in %s:\n", table)
	for _, c := range columns {
		fmt.Printf(" - %s: %s (nullable=%s)\n", c.ColumnName, c.DataType, c.Nullable)
	}
}

func countRows(db *gorm.DB) {
	for _, m := range database.PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			log.Fatalf("parse %T: %v", m, err)
		}
		var n int64
		if err := db.Model(m).Unscoped().Count(&n).Error; err != nil {
			fmt.Printf(" - %-22s error: %v\n", stmt.Schema.Table, err)
			continue
		}
		fmt.Printf(" - %-22s %d\n", stmt.Schema.Table, n)
	}
}

func nuke(db *gorm.DB) {
	fmt.Println("Nuking database...")
	if err := db.Exec("DROP SCHEMA public CASCADE; CREATE SCHEMA public;").Error; err != nil {
		log.Fatalf("failed to nuke schema: %v", err)
	}
	if err := db.Exec("GRANT ALL ON SCHEMA public TO public;").Error; err != nil {
		log.Fatalf("failed to grant schema permissions: %v", err)
	}
	fmt.Println("Database nuked. Run ./cmd/migrate up to recreate the schema.")
}

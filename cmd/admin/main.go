// Package main provides admin management utilities for socialnet.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"socialnet/internal/config"
	"socialnet/internal/database"
	"socialnet/internal/models"
	"socialnet/internal/repository"
	"socialnet/internal/service"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <user_id>        - Promote user to admin")
	fmt.Println("  go run ./cmd/admin demote <user_id>         - Demote user from admin")
	fmt.Println("  go run ./cmd/admin list-admins              - List all admins")
	fmt.Println("  go run ./cmd/admin refresh-metrics [days]   - Recompute daily metrics (default: today only)")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	repos := repository.NewRepos(db)
	users := service.NewUserService(repos.Users, nil, nil)

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <user_id>\n", command)
			os.Exit(1)
		}
		setAdmin(users, os.Args[2], command == "promote")

	case "list-admins":
		listAdmins(db)

	case "refresh-metrics":
		days := 1
		if len(os.Args) > 2 {
			days, err = strconv.Atoi(os.Args[2])
			if err != nil || days < 1 {
				log.Fatalf("Invalid day count %q", os.Args[2])
			}
		}
		refreshMetrics(service.NewAnalyticsService(repos.Analytics, repos.Users), days)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func setAdmin(users *service.UserService, rawID string, isAdmin bool) {
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil || id == 0 {
		fmt.Printf("Invalid user ID %q\n", rawID)
		os.Exit(1)
	}

	user, err := users.SetAdmin(context.Background(), uint(id), isAdmin)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			fmt.Printf("User with ID %d not found\n", id)
			os.Exit(1)
		}
		log.Fatalf("Failed to update user: %v", err)
	}

	verb := "demoted"
	if isAdmin {
		verb = "promoted"
	}
	fmt.Printf("✅ Successfully %s %s (ID: %d)\n", verb, user.Username, user.ID)
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Order("id").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("\n📋 Current Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Printf("ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
	fmt.Println("─────────────────────────────────────")
}

func refreshMetrics(analytics *service.AnalyticsService, days int) {
	ctx := context.Background()
	today := time.Now().UTC()
	for d := days - 1; d >= 0; d-- {
		m, err := analytics.RollupDay(ctx, today.AddDate(0, 0, -d))
		if err != nil {
			log.Fatalf("Failed to refresh metrics: %v", err)
		}
		fmt.Printf("%s new_users=%d active=%d posts=%d messages=%d friendships=%d\n",
			m.Date.Format("2006-01-02"), m.NewUsers, m.ActiveUsers, m.Posts, m.Messages, m.Friendships)
	}
}

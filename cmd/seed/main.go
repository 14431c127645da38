// Command main runs the database seeder for socialnet.
package main

import (
	"context"
	"flag"
	"log"

	"socialnet/internal/config"
	"socialnet/internal/database"
	"socialnet/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()

	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	postsPerUser := flag.Int("posts", defaults.PostsPerUser, "Posts per user")
	friendsPerUser := flag.Int("friends", defaults.FriendsPerUser, "Friend requests sent per user")
	messages := flag.Int("messages", defaults.MessagesPerFriendship, "Messages exchanged per friendship")
	backfill := flag.Int("backfill", defaults.BackfillDays, "Days of daily metrics to recompute")
	randSeed := flag.Int64("seed", 0, "Random seed (0 = time based)")
	fast := flag.Bool("fast", true, "Use the cheapest bcrypt cost")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	scenario := flag.String("scenario", "", "Apply a YAML scenario instead of generated data (e.g. cmd/seed/demo.yml)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	opts := defaults
	opts.Users = *numUsers
	opts.PostsPerUser = *postsPerUser
	opts.FriendsPerUser = *friendsPerUser
	opts.MessagesPerFriendship = *messages
	opts.BackfillDays = *backfill
	opts.Seed = *randSeed
	opts.SkipBcrypt = *fast

	ctx := context.Background()
	s := seed.NewSeeder(db, opts)

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	if *scenario != "" {
		sc, err := seed.LoadScenario(*scenario)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		sum, err := s.Apply(ctx, sc)
		if err != nil {
			log.Fatalf("❌ Scenario seeding failed: %v", err)
		}
		if err := s.Backfill(ctx, opts.BackfillDays); err != nil {
			log.Fatalf("❌ %v", err)
		}
		log.Printf("Scenario applied: %s", sum)
	} else if _, err := s.Run(ctx); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 Generated users have the password: %s", seed.DefaultPassword)
}

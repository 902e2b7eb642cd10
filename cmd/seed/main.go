// Command main seeds a document store with fake users for local demos.
package main

import (
	"context"
	"flag"
	"log"

	"kindling/internal/bootstrap"
	"kindling/internal/config"
	"kindling/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	demoUser := flag.String("demo", "uid001", "User id that seeded likes point at")
	likeFraction := flag.Float64("likes", 0.4, "Fraction of users liking the demo user")
	seedValue := flag.Int64("seed", 42, "Random seed for reproducible runs")
	flag.Parse()

	log.Println("Store Seeder")
	log.Println("============")
	log.Printf("Target: %d users, %.0f%% liking %s\n", *numUsers, *likeFraction*100, *demoUser)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rt, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	ctx := context.Background()
	defer func() {
		if err := rt.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	seeder := seed.NewSeeder(rt.Store, *seedValue)

	ids, err := seeder.Users(ctx, *numUsers)
	if err != nil {
		log.Fatalf("User seeding failed: %v", err)
	}
	log.Printf("Created %d users", len(ids))

	liked, err := seeder.LikesToward(ctx, *demoUser, ids, *likeFraction)
	if err != nil {
		log.Fatalf("Like seeding failed: %v", err)
	}
	log.Printf("Seeded %d likes toward %s - a like back completes a match", liked, *demoUser)
}

// Command seed fills a development database with demo data.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"alvacus/internal/config"
	"alvacus/internal/database"
	"alvacus/internal/seed"
)

func main() {
	opts := seed.Options{}
	flag.IntVar(&opts.NumUsers, "users", 25, "Number of users to create")
	flag.IntVar(&opts.NumCalculators, "calculators", 40, "Number of generated calculators")
	flag.IntVar(&opts.CommentsPerCalculator, "comments", 3, "Comments per generated calculator")
	flag.IntVar(&opts.MaxFollows, "follows", 5, "Maximum follows per user")
	flag.IntVar(&opts.MaxSaves, "saves", 5, "Maximum saves per calculator")
	flag.IntVar(&opts.MaxDays, "days", 90, "Spread creation dates over this many days")
	flag.Int64Var(&opts.RandSeed, "seed", 0, "Random seed (0 uses the clock)")
	flag.BoolVar(&opts.Clean, "clean", false, "Delete existing data before seeding")
	flag.BoolVar(&opts.SkipBuiltIn, "skip-builtin", false, "Do not upsert the built-in calculators")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "Generate data without writing it")
	flag.BoolVar(&opts.FastHash, "fast-hash", true, "Hash the shared password at the minimum bcrypt cost")
	fixtures := flag.String("fixtures", "", "Extra calculator fixture YAML file to upsert")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	res, err := seed.Seed(context.Background(), db, opts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	if *fixtures != "" && !opts.DryRun {
		data, err := os.ReadFile(*fixtures)
		if err != nil {
			log.Fatalf("Failed to read fixtures: %v", err)
		}
		extra, err := seed.LoadFixtures(data)
		if err != nil {
			log.Fatalf("Invalid fixtures: %v", err)
		}
		n, err := seed.Calculators(db, extra)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
		res.Fixtures += n
	}

	log.Printf("Seeded %d fixtures, %d users, %d calculators, %d follows, %d saves, %d comments, %d likes",
		res.Fixtures, res.Users, res.Calculators, res.Follows, res.Saves, res.Comments, res.Likes)
	if res.Users > 0 {
		log.Printf("All generated users have the password: %s", seed.DefaultPassword)
	}
}

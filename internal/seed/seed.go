package seed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"alvacus/internal/database"
	"alvacus/internal/middleware"
	"alvacus/internal/models"
	"alvacus/internal/repository"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers              int
	NumCalculators        int
	CommentsPerCalculator int
	// Upper bound on how many users each user follows.
	MaxFollows int
	// Upper bound on how many users save each calculator.
	MaxSaves    int
	MaxDays     int
	RandSeed    int64
	Clean       bool
	SkipBuiltIn bool
	DryRun      bool
	FastHash    bool
}

// Result counts what a Seed run created.
type Result struct {
	Fixtures    int
	Users       int
	Calculators int
	Follows     int
	Saves       int
	Comments    int
	Likes       int
}

// Seed populates the database with demo data: the built-in calculators
// followed by generated users and their activity. Social rows go through
// the repositories so counters stay consistent.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (Result, error) {
	var res Result
	logger := middleware.Logger.With(slog.String("component", "seed"))
	logger.Info("starting database seeding",
		slog.Int("users", opts.NumUsers),
		slog.Int("calculators", opts.NumCalculators),
		slog.Bool("dry_run", opts.DryRun))

	if opts.Clean && !opts.DryRun {
		if err := ClearData(db); err != nil {
			return res, fmt.Errorf("clear data: %w", err)
		}
		logger.Info("cleared existing data")
	}

	if !opts.SkipBuiltIn && !opts.DryRun {
		fixtures, err := BuiltInCalculators()
		if err != nil {
			return res, err
		}
		if res.Fixtures, err = Calculators(db.WithContext(ctx), fixtures); err != nil {
			return res, err
		}
		logger.Info("built-in calculators upserted", slog.Int("count", res.Fixtures))
	}

	f := NewFactory(db.WithContext(ctx), opts)
	users := make([]models.User, 0, opts.NumUsers)
	for range opts.NumUsers {
		u, err := f.CreateUser()
		if err != nil {
			return res, fmt.Errorf("create user: %w", err)
		}
		users = append(users, *u)
	}
	res.Users = len(users)
	if len(users) == 0 {
		logger.Info("no users requested, skipping generated activity")
		return res, nil
	}

	calcs := make([]models.Calculator, 0, opts.NumCalculators)
	for i := range opts.NumCalculators {
		author := &users[i%len(users)]
		c, err := f.CreateCalculator(author)
		if err != nil {
			return res, fmt.Errorf("create calculator: %w", err)
		}
		calcs = append(calcs, *c)
	}
	res.Calculators = len(calcs)

	if opts.DryRun {
		logger.Info("dry run finished", slog.Int("users", res.Users), slog.Int("calculators", res.Calculators))
		return res, nil
	}

	if err := seedActivity(ctx, db, f, opts, users, calcs, &res); err != nil {
		return res, err
	}

	logger.Info("database seeding completed",
		slog.Int("follows", res.Follows),
		slog.Int("saves", res.Saves),
		slog.Int("comments", res.Comments),
		slog.Int("likes", res.Likes))
	return res, nil
}

func seedActivity(ctx context.Context, db *gorm.DB, f *Factory, opts Options, users []models.User, calcs []models.Calculator, res *Result) error {
	follows := repository.NewFollowRepository(db)
	calcRepo := repository.NewCalculatorRepository(db)
	comments := repository.NewCommentRepository(db)

	for _, u := range users {
		for _, other := range f.Pick(users, f.rng.Intn(opts.MaxFollows+1), u.ID) {
			if err := follows.Follow(ctx, u.ID, other.ID, nil); err != nil {
				return fmt.Errorf("follow %d -> %d: %w", u.ID, other.ID, err)
			}
			res.Follows++
		}
	}

	for _, c := range calcs {
		skip := uint(0)
		if c.AuthorID != nil {
			skip = *c.AuthorID
		}
		for _, saver := range f.Pick(users, f.rng.Intn(opts.MaxSaves+1), skip) {
			if err := calcRepo.Save(ctx, c.ID, saver.ID, nil); err != nil {
				return fmt.Errorf("save calculator %d: %w", c.ID, err)
			}
			res.Saves++
		}

		for range opts.CommentsPerCalculator {
			author := users[f.rng.Intn(len(users))]
			comment := &models.Comment{CalculatorID: c.ID, AuthorID: author.ID, Text: f.CommentText()}
			if err := comments.Create(ctx, comment, nil); err != nil {
				return fmt.Errorf("comment on %d: %w", c.ID, err)
			}
			res.Comments++
			for _, liker := range f.Pick(users, f.rng.Intn(3), author.ID) {
				if err := comments.Like(ctx, comment.ID, liker.ID, nil); err != nil {
					return fmt.Errorf("like comment %d: %w", comment.ID, err)
				}
				res.Likes++
			}
		}
	}
	return nil
}

// ClearData removes every row from the application tables. Postgres
// truncates and resets sequences; other dialects delete child tables
// first.
func ClearData(db *gorm.DB) error {
	persistent := database.PersistentModels()
	tables := make([]string, 0, len(persistent))
	for _, m := range persistent {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return err
		}
		tables = append(tables, stmt.Schema.Table)
	}

	if db.Dialector.Name() == "postgres" {
		return db.Exec("TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error
	}

	for _, t := range slices.Backward(tables) {
		if err := db.Exec("DELETE FROM " + t).Error; err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	return nil
}

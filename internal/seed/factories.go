// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"alvacus/internal/formula"
	"alvacus/internal/models"
	"alvacus/internal/slug"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated account.
const DefaultPassword = "password123"

var categories = []string{"health", "math", "finance", "physics", "chemistry", "conversion"}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	rng   *rand.Rand
	hash  string
	// suffix keeping generated usernames and slugs unique
	seq int
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A zero
// opts.RandSeed seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		db:     db,
		opts:   opts,
		faker:  gofakeit.New(seed),
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // seed data only
		nextID: 1000,
	}
}

// passwordHash hashes DefaultPassword once per factory. FastHash trades
// the production cost for speed.
func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", err
	}
	f.hash = string(hash)
	return f.hash, nil
}

// createdAt spreads timestamps over the last MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

// BuildUser constructs an activated account without saving it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	f.seq++
	username := fmt.Sprintf("%s%d", strings.ToLower(f.faker.Username()), f.seq)
	user := &models.User{
		Username:    username,
		Slug:        username,
		Email:       username + "@example.com",
		Password:    hash,
		Profession:  f.faker.JobTitle(),
		Company:     f.faker.Company(),
		Avatar:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		Role:        models.RoleUser,
		IsActivated: true,
		Privacy: models.PrivacySettings{
			ShowComments:         f.faker.Bool(),
			ShowSavedCalculators: f.faker.Bool(),
		},
		CreatedAt: f.createdAt(),
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s", user.Username)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildCalculator constructs a modular calculator by author with a random
// linear formula over two to four inputs.
func (f *Factory) BuildCalculator(author *models.User, overrides ...func(*models.Calculator)) *models.Calculator {
	vars := []string{"a", "b", "c", "d"}[:2+f.rng.Intn(3)]
	terms := make([]string, len(vars))
	inputs := make([]string, len(vars))
	for i, v := range vars {
		terms[i] = fmt.Sprintf("%d*%s", 1+f.rng.Intn(9), v)
		inputs[i] = strings.Title(f.faker.Noun()) //nolint:staticcheck // ASCII nouns only
	}

	f.seq++
	title := fmt.Sprintf("%s %d", strings.Title(f.faker.BuzzWord()+" "+f.faker.Noun()), f.seq) //nolint:staticcheck // ASCII words only
	expr := formula.Normalize(strings.Join(terms, " + "))
	calc := &models.Calculator{
		Title:            title,
		Slug:             slug.From(title),
		Description:      f.faker.Sentence(8),
		Category:         categories[f.rng.Intn(len(categories))],
		Type:             models.CalculatorModular,
		Info:             f.faker.Paragraph(1, 3, 8, " "),
		InputLength:      len(vars),
		InputLabels:      labels(inputs, "Result"),
		Formula:          expr,
		FormulaVariables: vars,
		IsVerified:       f.rng.Intn(4) != 0,
		CreatedAt:        f.createdAt(),
	}
	if author != nil {
		calc.AuthorID = &author.ID
	}
	for _, override := range overrides {
		override(calc)
	}
	return calc
}

// CreateCalculator persists a generated calculator.
func (f *Factory) CreateCalculator(author *models.User, overrides ...func(*models.Calculator)) (*models.Calculator, error) {
	calc := f.BuildCalculator(author, overrides...)
	if f.opts.DryRun {
		f.nextID++
		calc.ID = f.nextID
		log.Printf("[dry-run] CreateCalculator: %s", calc.Slug)
		return calc, nil
	}
	if err := f.db.Create(calc).Error; err != nil {
		return nil, err
	}
	return calc, nil
}

// CommentText returns a short remark about a calculator.
func (f *Factory) CommentText() string {
	return f.faker.Sentence(4 + f.rng.Intn(10))
}

// Pick returns n distinct users other than skip, chosen at random.
func (f *Factory) Pick(users []models.User, n int, skip uint) []models.User {
	picked := make([]models.User, 0, n)
	for _, i := range f.rng.Perm(len(users)) {
		if len(picked) == n {
			break
		}
		if users[i].ID == skip {
			continue
		}
		picked = append(picked, users[i])
	}
	return picked
}

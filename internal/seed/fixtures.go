package seed

import (
	_ "embed"
	"fmt"

	"alvacus/internal/formula"
	"alvacus/internal/models"
	"alvacus/internal/slug"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed fixtures/calculators.yml
var builtInFixtures []byte

// CalculatorFixture is one entry of the calculator fixture file.
type CalculatorFixture struct {
	Title       string   `yaml:"title"`
	Slug        string   `yaml:"slug"`
	Type        string   `yaml:"type"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Info        string   `yaml:"info"`
	Markdown    bool     `yaml:"markdown"`
	Formula     string   `yaml:"formula"`
	Labels      []string `yaml:"labels"`
	Output      string   `yaml:"output"`
	Verified    bool     `yaml:"verified"`
}

type fixtureFile struct {
	Calculators []CalculatorFixture `yaml:"calculators"`
}

// LoadFixtures parses a calculator fixture document and checks every entry.
func LoadFixtures(data []byte) ([]CalculatorFixture, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	seen := make(map[string]bool, len(file.Calculators))
	for i, fx := range file.Calculators {
		if fx.Title == "" || fx.Category == "" || fx.Description == "" || fx.Info == "" {
			return nil, fmt.Errorf("fixture %d: title, category, description and info are required", i)
		}
		if len(fx.Labels) > models.MaxCalculatorInputs {
			return nil, fmt.Errorf("fixture %q: more than %d inputs", fx.Title, models.MaxCalculatorInputs)
		}
		if fx.Formula != "" {
			if err := formula.Validate(fx.Formula, nil); err != nil {
				return nil, fmt.Errorf("fixture %q: %w", fx.Title, err)
			}
		}
		s := fx.slug()
		if seen[s] {
			return nil, fmt.Errorf("fixture %q: duplicate slug %q", fx.Title, s)
		}
		seen[s] = true
	}
	return file.Calculators, nil
}

// BuiltInCalculators returns the embedded fixtures.
func BuiltInCalculators() ([]CalculatorFixture, error) {
	return LoadFixtures(builtInFixtures)
}

func (fx CalculatorFixture) slug() string {
	if fx.Slug != "" {
		return slug.From(fx.Slug)
	}
	return slug.From(fx.Title)
}

// Model converts the fixture into an unsaved calculator.
func (fx CalculatorFixture) Model() (*models.Calculator, error) {
	calc := &models.Calculator{
		Title:          fx.Title,
		Slug:           fx.slug(),
		Type:           fx.Type,
		Category:       fx.Category,
		Description:    fx.Description,
		Info:           fx.Info,
		IsInfoMarkdown: fx.Markdown,
		InputLength:    len(fx.Labels),
		InputLabels:    labels(fx.Labels, fx.Output),
		IsVerified:     fx.Verified,
	}
	if calc.Type == "" {
		calc.Type = models.CalculatorModular
	}
	if fx.Formula != "" {
		calc.Formula = formula.Normalize(fx.Formula)
		vars, err := formula.Variables(calc.Formula)
		if err != nil {
			return nil, err
		}
		calc.FormulaVariables = vars
	}
	return calc, nil
}

func labels(inputs []string, output string) models.InputLabels {
	l := models.InputLabels{OutputLabel: output}
	slots := []*string{
		&l.InputOneLabel, &l.InputTwoLabel, &l.InputThreeLabel,
		&l.InputFourLabel, &l.InputFiveLabel, &l.InputSixLabel,
	}
	for i, label := range inputs {
		*slots[i] = label
	}
	return l
}

// Calculators upserts fixtures by slug. Existing rows keep their author,
// saves and comments; the descriptive fields are refreshed.
func Calculators(db *gorm.DB, fixtures []CalculatorFixture) (int, error) {
	for _, fx := range fixtures {
		calc, err := fx.Model()
		if err != nil {
			return 0, fmt.Errorf("fixture %q: %w", fx.Title, err)
		}
		err = db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "description", "category", "type", "info", "is_info_markdown",
				"input_length", "input_labels", "formula", "formula_variables", "is_verified", "updated_at",
			}),
		}).Create(calc).Error
		if err != nil {
			return 0, fmt.Errorf("upsert calculator %q: %w", calc.Slug, err)
		}
	}
	return len(fixtures), nil
}

package service

import (
	"context"
	"errors"
	"strings"

	"alvacus/internal/auth"
	"alvacus/internal/formula"
	"alvacus/internal/models"
	"alvacus/internal/notifications"
	"alvacus/internal/repository"
	"alvacus/internal/slug"
)

type CalculatorService struct {
	calcs repository.CalculatorRepository
	users repository.UserRepository
	pub   notifications.Publisher
}

func NewCalculatorService(calcs repository.CalculatorRepository, users repository.UserRepository, pub notifications.Publisher) *CalculatorService {
	return &CalculatorService{calcs: calcs, users: users, pub: pub}
}

// CalculatorInput carries create and edit fields. On edit, zero values and
// nil pointers leave the stored value untouched.
type CalculatorInput struct {
	Title            string
	Slug             string
	Description      string
	Category         string
	Info             string
	Type             string
	InputLength      int
	InputLabels      *models.InputLabels
	InputSelects     *models.InputSelects
	Formula          *string
	FormulaVariables []string
	IsInfoMarkdown   *bool
}

// CalculatorSummary is returned after a create or edit.
type CalculatorSummary struct {
	Title   string `json:"title"`
	Formula string `json:"formula"`
	Link    string `json:"link"`
}

func summarize(c *models.Calculator) *CalculatorSummary {
	return &CalculatorSummary{Title: c.Title, Formula: c.Formula, Link: c.Link()}
}

func (in CalculatorInput) check() error {
	if in.InputLength > models.MaxCalculatorInputs {
		return models.NewUnprocessableError("More than 6 input is not allowed")
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" ||
		strings.TrimSpace(in.Category) == "" || strings.TrimSpace(in.Info) == "" {
		return models.NewValidationError("All fields are required")
	}
	switch in.Type {
	case "", models.CalculatorModular, models.CalculatorMonolithic:
		return nil
	default:
		return models.NewValidationError("Calculator type must be modular or monolithic")
	}
}

func (in CalculatorInput) slug() string {
	if s := slug.From(in.Slug); s != "" {
		return s
	}
	return slug.OrToken(in.Title)
}

// applyFormula normalizes and checks the formula, filling the variable
// list from the expression when the client sent none.
func applyFormula(calc *models.Calculator, expr string, declared []string) error {
	expr = formula.Normalize(expr)
	calc.Formula = expr
	if declared != nil {
		calc.FormulaVariables = declared
	}
	if expr == "" {
		return nil
	}
	if err := formula.Validate(expr, calc.FormulaVariables); err != nil {
		return models.NewUnprocessableError("Formula is not valid")
	}
	if len(calc.FormulaVariables) == 0 {
		vars, err := formula.Variables(expr)
		if err != nil {
			return models.NewUnprocessableError("Formula is not valid")
		}
		calc.FormulaVariables = vars
	}
	return nil
}

func (s *CalculatorService) ensureSlugFree(ctx context.Context, candidate string, excludeID uint) error {
	if candidate == "" {
		return models.NewValidationError("All fields are required")
	}
	taken, err := s.calcs.SlugTaken(ctx, candidate, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return models.NewUnprocessableError("There is a calculator with this name please choose different name")
	}
	return nil
}

func duplicateSlug(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return models.NewUnprocessableError("There is a calculator with this name please choose different name")
	}
	return err
}

func (s *CalculatorService) Create(ctx context.Context, p *auth.Principal, in CalculatorInput) (*CalculatorSummary, error) {
	if !auth.Can(p, auth.ActionCreate, auth.Resource{Kind: auth.KindCalculator}) {
		return nil, unauthorized()
	}
	if err := in.check(); err != nil {
		return nil, err
	}
	calcSlug := in.slug()
	if err := s.ensureSlugFree(ctx, calcSlug, 0); err != nil {
		return nil, err
	}

	authorID := p.UserID
	calc := &models.Calculator{
		AuthorID:    &authorID,
		Title:       strings.TrimSpace(in.Title),
		Slug:        calcSlug,
		Description: in.Description,
		Category:    in.Category,
		Info:        in.Info,
		Type:        in.Type,
		InputLength: in.InputLength,
	}
	if calc.Type == "" {
		calc.Type = models.CalculatorModular
	}
	if in.InputLabels != nil {
		calc.InputLabels = *in.InputLabels
	}
	if in.InputSelects != nil {
		calc.InputSelects = *in.InputSelects
	}
	if in.IsInfoMarkdown != nil {
		calc.IsInfoMarkdown = *in.IsInfoMarkdown
	}
	var expr string
	if in.Formula != nil {
		expr = *in.Formula
	}
	if err := applyFormula(calc, expr, in.FormulaVariables); err != nil {
		return nil, err
	}

	if err := s.calcs.Create(ctx, calc); err != nil {
		return nil, duplicateSlug(err)
	}
	return summarize(calc), nil
}

// findForUpdate loads a calculator for a write by p. A missing calculator
// is reported like a foreign one.
func (s *CalculatorService) findForUpdate(ctx context.Context, p *auth.Principal, id uint, action auth.Action) (*models.Calculator, error) {
	calc, err := s.calcs.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, unauthorized()
		}
		return nil, err
	}
	if !auth.Can(p, action, auth.CalculatorResource(calc)) {
		return nil, unauthorized()
	}
	return calc, nil
}

func (s *CalculatorService) Update(ctx context.Context, p *auth.Principal, id uint, in CalculatorInput) (*CalculatorSummary, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	calc, err := s.findForUpdate(ctx, p, id, auth.ActionUpdate)
	if err != nil {
		return nil, err
	}

	previousSlug := calc.Slug
	if next := in.slug(); next != calc.Slug {
		if err := s.ensureSlugFree(ctx, next, calc.ID); err != nil {
			return nil, err
		}
		calc.Slug = next
	}

	calc.Title = strings.TrimSpace(in.Title)
	calc.Description = in.Description
	calc.Category = in.Category
	calc.Info = in.Info
	if in.Type != "" {
		calc.Type = in.Type
	}
	if in.InputLength > 0 {
		calc.InputLength = in.InputLength
	}
	if in.InputLabels != nil {
		calc.InputLabels = *in.InputLabels
	}
	if in.InputSelects != nil {
		calc.InputSelects = *in.InputSelects
	}
	if in.IsInfoMarkdown != nil {
		calc.IsInfoMarkdown = *in.IsInfoMarkdown
	}
	expr := calc.Formula
	if in.Formula != nil {
		expr = *in.Formula
	}
	if err := applyFormula(calc, expr, in.FormulaVariables); err != nil {
		return nil, err
	}

	if err := s.calcs.Update(ctx, calc, previousSlug); err != nil {
		return nil, duplicateSlug(err)
	}
	return summarize(calc), nil
}

// Delete removes a calculator. The author or an admin may do it.
func (s *CalculatorService) Delete(ctx context.Context, p *auth.Principal, id uint) error {
	calc, err := s.findForUpdate(ctx, p, id, auth.ActionDelete)
	if err != nil {
		return err
	}
	return s.calcs.Delete(ctx, calc.ID)
}

func (s *CalculatorService) SetVerified(ctx context.Context, p *auth.Principal, id uint, verified bool) error {
	calc, err := s.findForUpdate(ctx, p, id, auth.ActionVerify)
	if err != nil {
		return err
	}
	return s.calcs.SetVerified(ctx, calc.ID, verified)
}

func (s *CalculatorService) GetByID(ctx context.Context, id uint) (*models.Calculator, error) {
	return s.calcs.GetByID(ctx, id)
}

func (s *CalculatorService) GetBySlug(ctx context.Context, calcSlug string) (*models.Calculator, error) {
	return s.calcs.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(calcSlug)))
}

// Verified lists every verified calculator.
func (s *CalculatorService) Verified(ctx context.Context) ([]models.Calculator, error) {
	verified := true
	return s.calcs.ListAll(ctx, repository.CalculatorFilter{Verified: &verified})
}

// Modular lists every modular calculator.
func (s *CalculatorService) Modular(ctx context.Context) ([]models.Calculator, error) {
	return s.calcs.ListAll(ctx, repository.CalculatorFilter{Type: models.CalculatorModular})
}

func (s *CalculatorService) page(ctx context.Context, filter repository.CalculatorFilter, q repository.ListQuery) (models.Page[models.Calculator], error) {
	q = q.Normalized()
	calcs, count, err := s.calcs.List(ctx, filter, q)
	if err != nil {
		return models.Page[models.Calculator]{}, err
	}
	return models.NewPage(calcs, count, q.Page, q.Limit), nil
}

func (s *CalculatorService) ListVerified(ctx context.Context, q repository.ListQuery) (models.Page[models.Calculator], error) {
	verified := true
	return s.page(ctx, repository.CalculatorFilter{Verified: &verified}, q)
}

// ListUnverified is the admin review queue.
func (s *CalculatorService) ListUnverified(ctx context.Context, p *auth.Principal, q repository.ListQuery) (models.Page[models.Calculator], error) {
	if !auth.Can(p, auth.ActionVerify, auth.Resource{Kind: auth.KindCalculator}) {
		return models.Page[models.Calculator]{}, unauthorized()
	}
	verified := false
	return s.page(ctx, repository.CalculatorFilter{Verified: &verified}, q)
}

// ListSaved lists a user's saved calculators when their privacy settings,
// or the principal's role, allow it. p may be nil.
func (s *CalculatorService) ListSaved(ctx context.Context, p *auth.Principal, userID uint, q repository.ListQuery) (models.Page[models.Calculator], error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return models.Page[models.Calculator]{}, unauthorized()
		}
		return models.Page[models.Calculator]{}, err
	}
	if !auth.Can(p, auth.ActionRead, auth.SavedListResource(user)) {
		return models.Page[models.Calculator]{}, unauthorized()
	}
	return s.page(ctx, repository.CalculatorFilter{SavedBy: &userID}, q)
}

func (s *CalculatorService) ListAuthored(ctx context.Context, userID uint, q repository.ListQuery) (models.Page[models.Calculator], error) {
	return s.page(ctx, repository.CalculatorFilter{AuthorID: &userID}, q)
}

// Evaluate runs the calculator's formula with values.
func (s *CalculatorService) Evaluate(ctx context.Context, id uint, values map[string]float64) (float64, error) {
	calc, err := s.calcs.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if calc.Formula == "" {
		return 0, models.NewUnprocessableError("Formula is not valid")
	}
	result, err := formula.Evaluate(calc.Formula, values)
	if err != nil {
		if errors.Is(err, formula.ErrMissingVariable) {
			return 0, models.NewValidationError(err.Error())
		}
		return 0, models.NewUnprocessableError("Formula is not valid")
	}
	return result, nil
}

// Save adds the calculator to userID's saved list. The path names the
// acting user, who must be the principal.
func (s *CalculatorService) Save(ctx context.Context, p *auth.Principal, calcID, userID uint) (*models.Calculator, error) {
	if !auth.Can(p, auth.ActionActAs, auth.UserResource(userID)) {
		return nil, unauthorized()
	}
	calc, err := s.calcs.GetByID(ctx, calcID)
	if err != nil {
		return nil, err
	}

	notif := calculatorNotification(calc, p.UserID, models.NotificationSave, p.Profile.Username+" saved "+calc.Title)
	if err := s.calcs.Save(ctx, calc.ID, userID, notif); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewUnauthorizedError("User already exists in saved users list")
		}
		return nil, err
	}
	publishAfterCommit(ctx, s.pub, notif)
	return s.calcs.GetByID(ctx, calc.ID)
}

func (s *CalculatorService) Unsave(ctx context.Context, p *auth.Principal, calcID, userID uint) (*models.Calculator, error) {
	if !auth.Can(p, auth.ActionActAs, auth.UserResource(userID)) {
		return nil, unauthorized()
	}
	if _, err := s.calcs.GetByID(ctx, calcID); err != nil {
		return nil, err
	}
	if _, err := s.calcs.Unsave(ctx, calcID, userID); err != nil {
		return nil, err
	}
	return s.calcs.GetByID(ctx, calcID)
}

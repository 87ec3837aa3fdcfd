package server

import (
	"context"

	"alvacus/internal/auth"
	"alvacus/internal/models"
	"alvacus/internal/service"

	"github.com/gofiber/fiber/v2"
)

// calculatorRequest is the JSON body of create and edit.
type calculatorRequest struct {
	Title            string               `json:"title"`
	Slug             string               `json:"slug"`
	Description      string               `json:"description"`
	Category         string               `json:"category"`
	Info             string               `json:"info"`
	Type             string               `json:"type"`
	InputLength      int                  `json:"inputLength"`
	InputLabels      *models.InputLabels  `json:"inputLabels"`
	InputSelects     *models.InputSelects `json:"inputSelects"`
	Formula          *string              `json:"formula"`
	FormulaVariables []string             `json:"formulaVariables"`
	IsInfoMarkdown   *bool                `json:"isInfoMarkdown"`
}

func (r calculatorRequest) input() service.CalculatorInput {
	return service.CalculatorInput{
		Title:            r.Title,
		Slug:             r.Slug,
		Description:      r.Description,
		Category:         r.Category,
		Info:             r.Info,
		Type:             r.Type,
		InputLength:      r.InputLength,
		InputLabels:      r.InputLabels,
		InputSelects:     r.InputSelects,
		Formula:          r.Formula,
		FormulaVariables: r.FormulaVariables,
		IsInfoMarkdown:   r.IsInfoMarkdown,
	}
}

// GetVerifiedCalculators handles GET /api/calculators
// @Summary All verified calculators
// @Tags calculators
// @Produce json
// @Success 200 {object} object{calculators=[]models.Calculator}
// @Router /calculators [get]
func (s *Server) GetVerifiedCalculators(c *fiber.Ctx) error {
	calcs, err := s.calculatorService.Verified(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"calculators": calcs})
}

// ListCalculators handles GET /api/calculators/all
// @Summary Verified calculators, paginated
// @Tags calculators
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param type query string false "recent, a-z, z-a or popular"
// @Param search query string false "Title filter"
// @Param tag query string false "Category"
// @Success 200 {object} object{calculators=[]models.Calculator,totalPages=int,count=int,currentPage=int}
// @Router /calculators/all [get]
func (s *Server) ListCalculators(c *fiber.Ctx) error {
	page, err := s.calculatorService.ListVerified(c.UserContext(), listQuery(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(pageResponse("calculators", page))
}

// GetModularCalculators handles GET /api/calculators/modular
// @Summary All modular calculators
// @Tags calculators
// @Produce json
// @Success 200 {object} object{calculators=[]models.Calculator}
// @Router /calculators/modular [get]
func (s *Server) GetModularCalculators(c *fiber.Ctx) error {
	calcs, err := s.calculatorService.Modular(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"calculators": calcs})
}

// ListUnverifiedCalculators handles GET /api/calculators/unverified
// @Summary Review queue
// @Tags calculators
// @Produce json
// @Success 200 {object} object{calculators=[]models.Calculator,totalPages=int,count=int,currentPage=int}
// @Failure 401 {object} models.ErrorResponse
// @Router /calculators/unverified [get]
func (s *Server) ListUnverifiedCalculators(c *fiber.Ctx) error {
	page, err := s.calculatorService.ListUnverified(c.UserContext(), principal(c), listQuery(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(pageResponse("calculators", page))
}

// GetCalculatorBySlug handles GET /api/calculators/monolithic/:slug
// @Summary Calculator by slug
// @Tags calculators
// @Produce json
// @Param slug path string true "Slug"
// @Success 200 {object} models.Calculator
// @Failure 404 {object} models.ErrorResponse
// @Router /calculators/monolithic/{slug} [get]
func (s *Server) GetCalculatorBySlug(c *fiber.Ctx) error {
	calc, err := s.calculatorService.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(calc)
}

// GetCalculator handles GET /api/calculators/:id
// @Summary Calculator by ID
// @Tags calculators
// @Produce json
// @Param id path int true "Calculator ID"
// @Success 200 {object} models.Calculator
// @Failure 404 {object} models.ErrorResponse
// @Router /calculators/{id} [get]
func (s *Server) GetCalculator(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	calc, err := s.calculatorService.GetByID(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(calc)
}

// ListSavedCalculators handles GET /api/calculators/:userId/saved
// @Summary Calculators saved by a user
// @Description Hidden unless the caller owns the list, is an admin, or the user enabled showSavedCalculators.
// @Tags calculators
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} object{calculators=[]models.Calculator,totalPages=int,count=int,currentPage=int}
// @Failure 401 {object} models.ErrorResponse
// @Router /calculators/{userId}/saved [get]
func (s *Server) ListSavedCalculators(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	page, err := s.calculatorService.ListSaved(c.UserContext(), principal(c), userID, listQuery(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(pageResponse("calculators", page))
}

// ListAuthoredCalculators handles GET /api/calculators/:userId/my-calculators
// @Summary Calculators authored by a user
// @Tags calculators
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} object{calculators=[]models.Calculator,totalPages=int,count=int,currentPage=int}
// @Router /calculators/{userId}/my-calculators [get]
func (s *Server) ListAuthoredCalculators(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	page, err := s.calculatorService.ListAuthored(c.UserContext(), userID, listQuery(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(pageResponse("calculators", page))
}

// CreateCalculator handles POST /api/calculators/create
// @Summary Create a calculator
// @Tags calculators
// @Accept json
// @Produce json
// @Param request body calculatorRequest true "Calculator"
// @Success 200 {object} service.CalculatorSummary
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /calculators/create [post]
func (s *Server) CreateCalculator(c *fiber.Ctx) error {
	var req calculatorRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	summary, err := s.calculatorService.Create(c.UserContext(), principal(c), req.input())
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(summary)
}

// UpdateCalculator handles PATCH /api/calculators/edit/:calcId
// @Summary Edit a calculator
// @Description Author or admin.
// @Tags calculators
// @Accept json
// @Produce json
// @Param calcId path int true "Calculator ID"
// @Param request body calculatorRequest true "Calculator"
// @Success 200 {object} service.CalculatorSummary
// @Failure 401 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /calculators/edit/{calcId} [patch]
func (s *Server) UpdateCalculator(c *fiber.Ctx) error {
	id, err := parseID(c, "calcId")
	if err != nil {
		return nil
	}
	var req calculatorRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	summary, err := s.calculatorService.Update(c.UserContext(), principal(c), id, req.input())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(summary)
}

// DeleteCalculator handles DELETE /api/calculators/delete/:calcId
// @Summary Delete a calculator
// @Description Author or admin.
// @Tags calculators
// @Produce json
// @Param calcId path int true "Calculator ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /calculators/delete/{calcId} [delete]
func (s *Server) DeleteCalculator(c *fiber.Ctx) error {
	id, err := parseID(c, "calcId")
	if err != nil {
		return nil
	}
	if err := s.calculatorService.Delete(c.UserContext(), principal(c), id); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Calculator is deleted"})
}

// VerifyCalculator handles PATCH /api/calculators/verify/:calcId
// @Summary Set verification status
// @Tags calculators
// @Accept json
// @Produce json
// @Param calcId path int true "Calculator ID"
// @Param request body object{isVerified=bool} true "Status"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /calculators/verify/{calcId} [patch]
func (s *Server) VerifyCalculator(c *fiber.Ctx) error {
	id, err := parseID(c, "calcId")
	if err != nil {
		return nil
	}
	var req struct {
		IsVerified bool `json:"isVerified"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	if err := s.calculatorService.SetVerified(c.UserContext(), principal(c), id, req.IsVerified); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Verification status changed"})
}

// EvaluateCalculator handles POST /api/calculators/:calcId/evaluate
// @Summary Evaluate a formula
// @Tags calculators
// @Accept json
// @Produce json
// @Param calcId path int true "Calculator ID"
// @Param request body object{values=map[string]number} true "Variable values"
// @Success 200 {object} object{result=number}
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /calculators/{calcId}/evaluate [post]
func (s *Server) EvaluateCalculator(c *fiber.Ctx) error {
	id, err := parseID(c, "calcId")
	if err != nil {
		return nil
	}
	var req struct {
		Values map[string]float64 `json:"values"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	result, err := s.calculatorService.Evaluate(c.UserContext(), id, req.Values)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"result": result})
}

// SaveCalculator handles POST /api/calculators/:calcId/:userId/save
// @Summary Save a calculator
// @Tags calculators
// @Produce json
// @Param calcId path int true "Calculator ID"
// @Param userId path int true "User ID"
// @Success 200 {object} models.Calculator
// @Failure 401 {object} models.ErrorResponse
// @Router /calculators/{calcId}/{userId}/save [post]
func (s *Server) SaveCalculator(c *fiber.Ctx) error {
	return s.toggleSave(c, s.calculatorService.Save)
}

// UnsaveCalculator handles POST /api/calculators/:calcId/:userId/unSave
// @Summary Remove a calculator from the saved list
// @Tags calculators
// @Produce json
// @Param calcId path int true "Calculator ID"
// @Param userId path int true "User ID"
// @Success 200 {object} models.Calculator
// @Failure 401 {object} models.ErrorResponse
// @Router /calculators/{calcId}/{userId}/unSave [post]
func (s *Server) UnsaveCalculator(c *fiber.Ctx) error {
	return s.toggleSave(c, s.calculatorService.Unsave)
}

type saveFunc = func(ctx context.Context, p *auth.Principal, calcID, userID uint) (*models.Calculator, error)

func (s *Server) toggleSave(c *fiber.Ctx, fn saveFunc) error {
	calcID, err := parseID(c, "calcId")
	if err != nil {
		return nil
	}
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	calc, err := fn(c.UserContext(), principal(c), calcID, userID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(calc)
}

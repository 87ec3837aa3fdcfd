package server

import (
	"net/http"
	"testing"

	"alvacus/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCalculator(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	s := ts.register(t, "alice")

	base := func() fiber.Map {
		return fiber.Map{
			"title":       "Body Mass Index",
			"description": "weight over height squared",
			"category":    "health",
			"info":        "bmi",
			"inputLength": 2,
			"formula":     "w / (h * h)",
		}
	}

	resp, body := ts.do(t, http.MethodPost, "/api/calculators/create", base())
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "anonymous")

	resp, body = ts.do(t, http.MethodPost, "/api/calculators/create", base(), bearer(s.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, "%v", body)
	assert.Equal(t, "Body Mass Index", body["title"])
	assert.Equal(t, "w/(h*h)", body["formula"])

	var calc models.Calculator
	require.NoError(t, ts.db.Where("slug = ?", "body-mass-index").First(&calc).Error)
	assert.Equal(t, idPath("/modular/%d", calc.ID), body["link"])
	assert.Equal(t, []string{"w", "h"}, calc.FormulaVariables)
	assert.False(t, calc.IsVerified)

	t.Run("duplicate title", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodPost, "/api/calculators/create", base(), bearer(s.Access))
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "There is a calculator with this name please choose different name", body["error"])
	})

	t.Run("too many inputs", func(t *testing.T) {
		req := base()
		req["title"] = "Wide"
		req["inputLength"] = 7
		resp, _ := ts.do(t, http.MethodPost, "/api/calculators/create", req, bearer(s.Access))
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("broken formula", func(t *testing.T) {
		req := base()
		req["title"] = "Broken"
		req["formula"] = "a * (b"
		resp, body := ts.do(t, http.MethodPost, "/api/calculators/create", req, bearer(s.Access))
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "Formula is not valid", body["error"])
	})

	t.Run("missing fields", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPost, "/api/calculators/create", fiber.Map{"title": "Empty"}, bearer(s.Access))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestCalculatorLists_OnlyVerifiedArePublic(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	root := ts.register(t, "root")
	ts.promote(t, root.ID)

	area := ts.createCalculator(t, alice, "Area")
	ts.createCalculator(t, alice, "Volume")

	resp, _ := ts.do(t, http.MethodPatch, idPath("/api/calculators/verify/%d", area), fiber.Map{"isVerified": true}, bearer(alice.Access))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "only admins verify")

	resp, body := ts.do(t, http.MethodPatch, idPath("/api/calculators/verify/%d", area), fiber.Map{"isVerified": true}, bearer(root.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Verification status changed", body["message"])

	resp, body = ts.do(t, http.MethodGet, "/api/calculators/all", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
	list, _ := body["calculators"].([]any)
	require.Len(t, list, 1)
	first, _ := list[0].(map[string]any)
	assert.Equal(t, "Area", first["title"])

	resp, body = ts.do(t, http.MethodGet, "/api/calculators", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["calculators"], 1)

	resp, body = ts.do(t, http.MethodGet, "/api/calculators/modular", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["calculators"], 2)

	resp, _ = ts.do(t, http.MethodGet, "/api/calculators/unverified", nil, bearer(alice.Access))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/calculators/unverified", nil, bearer(root.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	resp, body = ts.do(t, http.MethodGet, idPath("/api/calculators/%d/my-calculators", alice.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])
}

func TestGetCalculator(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	s := ts.register(t, "alice")
	id := ts.createCalculator(t, s, "Area")

	resp, body := ts.do(t, http.MethodGet, idPath("/api/calculators/%d", id), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "a*b", body["formula"])
	author, _ := body["author"].(map[string]any)
	assert.Equal(t, "alice", author["username"])

	resp, body = ts.do(t, http.MethodGet, "/api/calculators/monolithic/area", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Area", body["title"])

	resp, _ = ts.do(t, http.MethodGet, "/api/calculators/999", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/calculators/xyz", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid ID", body["error"])
}

func TestUpdateAndDeleteCalculator(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bob")
	root := ts.register(t, "root")
	ts.promote(t, root.ID)

	first := ts.createCalculator(t, alice, "Area")
	second := ts.createCalculator(t, alice, "Volume")

	edit := fiber.Map{
		"title":       "Rectangle Area",
		"description": "width times height",
		"category":    "math",
		"info":        "area",
		"inputLength": 2,
		"formula":     "w * h",
	}
	resp, _ := ts.do(t, http.MethodPatch, idPath("/api/calculators/edit/%d", first), edit, bearer(bob.Access))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPatch, idPath("/api/calculators/edit/%d", first), edit, bearer(alice.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, "%v", body)
	assert.Equal(t, "w*h", body["formula"])

	resp, _ = ts.do(t, http.MethodDelete, idPath("/api/calculators/delete/%d", first), nil, bearer(bob.Access))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body = ts.do(t, http.MethodDelete, idPath("/api/calculators/delete/%d", first), nil, bearer(alice.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Calculator is deleted", body["message"])

	resp, _ = ts.do(t, http.MethodDelete, idPath("/api/calculators/delete/%d", second), nil, bearer(root.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Zero(t, ts.count(t, &models.Calculator{}, ""))
}

func TestEvaluateCalculator(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	s := ts.register(t, "alice")
	id := ts.createCalculator(t, s, "Area")
	path := idPath("/api/calculators/%d/evaluate", id)

	resp, body := ts.do(t, http.MethodPost, path, fiber.Map{"values": fiber.Map{"a": 3, "b": 4.5}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.InDelta(t, 13.5, body["result"], 1e-9)

	resp, _ = ts.do(t, http.MethodPost, path, fiber.Map{"values": fiber.Map{"a": 3}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSaveCalculator(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bob")
	id := ts.createCalculator(t, alice, "Area")
	save := idPath("/api/calculators/%d/%d/save", id, bob.ID)

	resp, _ := ts.do(t, http.MethodPost, save, nil, bearer(alice.Access))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "cannot save on behalf of another user")

	resp, body := ts.do(t, http.MethodPost, save, nil, bearer(bob.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{map[string]any{"userId": float64(bob.ID)}}, body["savedUsers"])

	resp, body = ts.do(t, http.MethodPost, save, nil, bearer(bob.Access))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "User already exists in saved users list", body["error"])

	t.Run("saved list respects privacy", func(t *testing.T) {
		saved := idPath("/api/calculators/%d/saved", bob.ID)
		resp, _ := ts.do(t, http.MethodGet, saved, nil, bearer(alice.Access))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		resp, body := ts.do(t, http.MethodGet, saved, nil, bearer(bob.Access))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["count"])
	})

	t.Run("author is notified", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodGet, "/api/user/notifications", nil, bearer(alice.Access))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		list, _ := body["notifications"].([]any)
		require.Len(t, list, 1)
		first, _ := list[0].(map[string]any)
		assert.Equal(t, "bob saved Area", first["text"])
	})

	resp, body = ts.do(t, http.MethodPost, idPath("/api/calculators/%d/%d/unSave", id, bob.ID), nil, bearer(bob.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, body["savedUsers"])
}

package server

import (
	"net/http"
	"testing"

	"alvacus/internal/mailer"
	"alvacus/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReport(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/report/submit", fiber.Map{"subject": "wrong"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/api/report/submit", fiber.Map{
		"subject":      "Wrong result",
		"message":      "BMI is off by one",
		"title":        "Body Mass Index",
		"calculatorId": 7,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["message"])

	var report models.Report
	require.NoError(t, ts.db.First(&report).Error)
	assert.Equal(t, "Anonymous", report.Username)
	assert.Equal(t, "Anonymous", report.Email)
	assert.Equal(t, "7", report.CalculatorID)
	assert.False(t, report.IsReportSeen)

	msgs := ts.mail.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ops@alvacus.test", msgs[0].To)
	assert.Equal(t, mailer.TemplateReport, msgs[0].Template)
}

func TestSubmitCommentReport(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/report/comment-report", fiber.Map{
		"title":          "Area",
		"commentContent": "spam",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "reasons are required")

	resp, _ = ts.do(t, http.MethodPost, "/api/report/comment-report", fiber.Map{
		"username":       "bob",
		"title":          "Area",
		"calculatorId":   "3",
		"commentId":      12,
		"commentContent": "spam",
		"reportReasons":  []string{"spam", "offensive"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report models.Report
	require.NoError(t, ts.db.First(&report).Error)
	assert.Equal(t, "bob", report.Username)
	assert.Equal(t, "12", report.CommentID)
	assert.Equal(t, []string{"spam", "offensive"}, report.CommentReportReasons)
}

func TestReportQueue_AdminOnly(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	root := ts.register(t, "root")
	ts.promote(t, root.ID)

	resp, _ := ts.do(t, http.MethodPost, "/api/report/submit", fiber.Map{
		"subject": "Typo", "message": "label", "title": "Area",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var report models.Report
	require.NoError(t, ts.db.First(&report).Error)

	for _, path := range []string{"/api/report", "/api/report/unseen"} {
		resp, _ := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
		resp, _ = ts.do(t, http.MethodGet, path, nil, bearer(alice.Access))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
	}

	resp, body := ts.do(t, http.MethodGet, "/api/report/unseen", nil, bearer(root.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	resp, body = ts.do(t, http.MethodPatch, idPath("/api/report/update/%d", report.ID), fiber.Map{"isReportSeen": true}, bearer(root.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["isReportSeen"])

	resp, body = ts.do(t, http.MethodGet, "/api/report", nil, bearer(root.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
	_, body = ts.do(t, http.MethodGet, "/api/report/unseen", nil, bearer(root.Access))
	assert.Equal(t, float64(0), body["count"])

	resp, _ = ts.do(t, http.MethodDelete, idPath("/api/report/%d", report.ID), nil, bearer(alice.Access))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp, body = ts.do(t, http.MethodDelete, idPath("/api/report/%d", report.ID), nil, bearer(root.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Report deleted", body["message"])
	assert.Zero(t, ts.count(t, &models.Report{}, ""))
}

func TestContact(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	root := ts.register(t, "root")
	ts.promote(t, root.ID)

	resp, _ := ts.do(t, http.MethodPost, "/api/contact", fiber.Map{"username": "visitor", "subject": "hi"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/api/contact", fiber.Map{
		"username": "visitor",
		"email":    "visitor@example.com",
		"subject":  "Partnership",
		"message":  "Let's talk",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["message"])

	msgs := ts.mail.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, mailer.TemplateContact, msgs[0].Template)
	assert.Equal(t, "visitor@example.com", msgs[0].Data["email"])

	var contact models.Contact
	require.NoError(t, ts.db.First(&contact).Error)

	resp, body = ts.do(t, http.MethodGet, "/api/contact/unseen", nil, bearer(root.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["contacts"], 1)

	resp, body = ts.do(t, http.MethodPatch, idPath("/api/contact/update/%d", contact.ID), fiber.Map{"isContactSeen": true}, bearer(root.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["isContactSeen"])

	resp, _ = ts.do(t, http.MethodDelete, idPath("/api/contact/%d", contact.ID), nil, bearer(root.Access))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Zero(t, ts.count(t, &models.Contact{}, ""))
}

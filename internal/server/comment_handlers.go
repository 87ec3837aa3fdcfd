package server

import (
	"github.com/gofiber/fiber/v2"
)

type commentRequest struct {
	Text string `json:"text"`
}

// CreateComment handles POST /api/calculators/:calcId/comments
// @Summary Comment on a calculator
// @Tags comments
// @Accept json
// @Produce json
// @Param calcId path int true "Calculator ID"
// @Param request body commentRequest true "Comment"
// @Success 200 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /calculators/{calcId}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	calcID, err := parseID(c, "calcId")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	comment, err := s.commentService.Create(c.UserContext(), principal(c), calcID, req.Text)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(comment)
}

// ListComments handles GET /api/calculators/:calcId/comments
// @Summary Comments of a calculator
// @Tags comments
// @Produce json
// @Param calcId path int true "Calculator ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} object{comments=[]models.Comment,totalPages=int,count=int,currentPage=int}
// @Router /calculators/{calcId}/comments [get]
func (s *Server) ListComments(c *fiber.Ctx) error {
	calcID, err := parseID(c, "calcId")
	if err != nil {
		return nil
	}
	page, err := s.commentService.List(c.UserContext(), calcID, listQuery(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(pageResponse("comments", page))
}

// ReplyToComment handles POST /api/calculators/comments/:commentId/reply
// @Summary Reply to a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param commentId path int true "Comment ID"
// @Param request body commentRequest true "Reply"
// @Success 200 {object} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /calculators/comments/{commentId}/reply [post]
func (s *Server) ReplyToComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	comment, err := s.commentService.Reply(c.UserContext(), principal(c), commentID, req.Text)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(comment)
}

// DeleteComment handles DELETE /api/calculators/comments/:commentId/delete
// @Summary Delete a comment
// @Description Comment author only.
// @Tags comments
// @Produce json
// @Param commentId path int true "Comment ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /calculators/comments/{commentId}/delete [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	if err := s.commentService.Delete(c.UserContext(), principal(c), commentID); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Comment deleted"})
}

// DeleteReply handles DELETE /api/calculators/comments/:commentId/replies/:replyId/delete
// @Summary Delete a reply
// @Description Author of the parent comment only.
// @Tags comments
// @Produce json
// @Param commentId path int true "Comment ID"
// @Param replyId path int true "Reply ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /calculators/comments/{commentId}/replies/{replyId}/delete [delete]
func (s *Server) DeleteReply(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	replyID, err := parseID(c, "replyId")
	if err != nil {
		return nil
	}
	if err := s.commentService.DeleteReply(c.UserContext(), principal(c), commentID, replyID); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Reply deleted"})
}

// LikeComment handles POST /api/calculators/comments/:commentId/like
// @Summary Like a comment
// @Tags comments
// @Produce json
// @Param commentId path int true "Comment ID"
// @Success 200 {object} models.Comment
// @Failure 401 {object} models.ErrorResponse
// @Router /calculators/comments/{commentId}/like [post]
func (s *Server) LikeComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	comment, err := s.commentService.Like(c.UserContext(), principal(c), commentID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comment)
}

// UnlikeComment handles POST /api/calculators/comments/:commentId/unlike
// @Summary Remove a like
// @Tags comments
// @Produce json
// @Param commentId path int true "Comment ID"
// @Success 200 {object} models.Comment
// @Router /calculators/comments/{commentId}/unlike [post]
func (s *Server) UnlikeComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	comment, err := s.commentService.Unlike(c.UserContext(), principal(c), commentID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comment)
}

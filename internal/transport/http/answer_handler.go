package http

import (
	"context"
	"net/http"

	"drill-review-service/internal/app"
	"drill-review-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type reviewRequest struct {
	Feedback *string `json:"feedback"`
}

func (h *handlers) submitAnswer(c *gin.Context) {
	var in app.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	// A leader may only submit on their own behalf.
	if actor, _ := actorFrom(c); actor.Role == domain.RoleLeader && in.LeaderID != actor.ID {
		writeError(c, h.log, domain.ErrUnauthorized)
		return
	}
	answer, err := h.svc.Answers.Submit(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, answer)
}

func (h *handlers) listAnswers(c *gin.Context) {
	filter := domain.AnswerFilter{
		LeaderID:  c.Query("leaderId"),
		SessionID: c.Query("sessionId"),
		Status:    domain.AnswerStatus(c.Query("status")),
	}
	answers, err := h.svc.Answers.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, answers)
}

func (h *handlers) getAnswer(c *gin.Context) {
	answer, err := h.svc.Answers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (h *handlers) approveAnswer(c *gin.Context) {
	h.review(c, h.svc.Reviews.Approve)
}

func (h *handlers) rejectAnswer(c *gin.Context) {
	h.review(c, h.svc.Reviews.Reject)
}

type reviewFunc func(ctx context.Context, answerID string, reviewer domain.Reviewer, feedback *string) (domain.Answer, error)

func (h *handlers) review(c *gin.Context, fn reviewFunc) {
	var req reviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	actor, _ := actorFrom(c)
	answer, err := fn(c.Request.Context(), c.Param("id"), actor, req.Feedback)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (h *handlers) deleteAnswer(c *gin.Context) {
	deleted, err := h.svc.Answers.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

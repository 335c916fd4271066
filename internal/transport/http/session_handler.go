package http

import (
	"bytes"
	"net/http"

	"drill-review-service/internal/app"
	"drill-review-service/internal/export"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *handlers) createSession(c *gin.Context) {
	var in app.CreateSessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	session, err := h.svc.Sessions.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *handlers) listSessions(c *gin.Context) {
	sessions, err := h.svc.Sessions.List(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *handlers) getSession(c *gin.Context) {
	session, err := h.svc.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handlers) transitionSession(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	session, err := h.svc.Sessions.Transition(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handlers) leaderboard(c *gin.Context) {
	board, err := h.svc.Leaderboard.Compute(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *handlers) exportLeaderboard(c *gin.Context) {
	sessionID := c.Param("id")
	board, err := h.svc.Leaderboard.Compute(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteLeaderboard(&buf, board); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(sessionID)+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *handlers) listLeaders(c *gin.Context) {
	roster, err := h.svc.Leaders.Roster(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}

package api

import (
	"net/http"
	"time"

	"ai-character-chat-simulator/backend/internal/conversation"
	"ai-character-chat-simulator/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// ConversationHandler serves the conversation view
type ConversationHandler struct {
	sim *service.Simulator
	now func() time.Time
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(sim *service.Simulator) *ConversationHandler {
	return &ConversationHandler{sim: sim, now: time.Now}
}

// RegisterRoutes mounts the conversation routes on rg
func (h *ConversationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	conv := rg.Group("/conversation")
	{
		conv.POST("", h.Start)
		conv.GET("", h.Get)
		conv.DELETE("", h.End)
		conv.POST("/toggle", h.Toggle)
		conv.POST("/events", h.InjectEvent)
		conv.GET("/export", h.Export)

		conv.POST("/messages", h.AddMessage)
		conv.PUT("/messages/:id", h.UpdateMessage)
		conv.DELETE("/messages/:id", h.DeleteMessage)
		conv.POST("/messages/:id/edit", h.BeginEdit)

		conv.POST("/edit/save", h.SaveEdit)
		conv.POST("/edit/cancel", h.CancelEdit)
	}
}

type textRequest struct {
	Text string `json:"text"`
}

type senderRequest struct {
	Sender string `json:"sender" binding:"required"`
}

// engine resolves the running conversation or records the error
func (h *ConversationHandler) engine(c *gin.Context) (*conversation.Engine, bool) {
	e, err := h.sim.Conversation()
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return e, true
}

// Start opens a conversation from the active setup
func (h *ConversationHandler) Start(c *gin.Context) {
	snap, err := h.sim.Start(c.Request.Context(), nil)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// Get returns the conversation snapshot
func (h *ConversationHandler) Get(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e.Snapshot())
}

// End closes the conversation and returns to setup
func (h *ConversationHandler) End(c *gin.Context) {
	h.sim.End()
	c.Status(http.StatusNoContent)
}

// Toggle pauses or resumes the conversation
func (h *ConversationHandler) Toggle(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}
	if _, err := e.Toggle(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e.Snapshot())
}

// InjectEvent appends a System event and resumes
func (h *ConversationHandler) InjectEvent(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, ok := h.engine(c)
	if !ok {
		return
	}

	appended, err := e.InjectEvent(req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"appended":     appended,
		"conversation": e.Snapshot(),
	})
}

// AddMessage appends a blank message and opens it in the editor
func (h *ConversationHandler) AddMessage(c *gin.Context) {
	var req senderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, ok := h.engine(c)
	if !ok {
		return
	}

	msg, err := e.AddMessage(req.Sender)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// UpdateMessage replaces a message's text; the conversation is paused
func (h *ConversationHandler) UpdateMessage(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, ok := h.engine(c)
	if !ok {
		return
	}

	msg, err := e.UpdateMessage(c.Param("id"), req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage removes a message by id
func (h *ConversationHandler) DeleteMessage(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}
	if err := e.DeleteMessage(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BeginEdit pauses and opens a message in the editor
func (h *ConversationHandler) BeginEdit(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}
	msg, err := e.BeginEdit(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// SaveEdit stores the editor text
func (h *ConversationHandler) SaveEdit(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, ok := h.engine(c)
	if !ok {
		return
	}

	msg, err := e.SaveEdit(req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// CancelEdit closes the editor without changes
func (h *ConversationHandler) CancelEdit(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}
	if err := e.CancelEdit(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Export downloads the conversation together with its setup
func (h *ConversationHandler) Export(c *gin.Context) {
	name, data, err := h.sim.ExportConversation(h.now())
	if err != nil {
		fail(c, err)
		return
	}
	attachment(c, name, data)
}

package api

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"ai-character-chat-simulator/backend/internal/models"
	"ai-character-chat-simulator/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupHandler serves the setup screen: the active setup, file export and import
type SetupHandler struct {
	sim *service.Simulator
}

// NewSetupHandler creates a new setup handler
func NewSetupHandler(sim *service.Simulator) *SetupHandler {
	return &SetupHandler{sim: sim}
}

// RegisterRoutes mounts the setup routes on rg
func (h *SetupHandler) RegisterRoutes(rg *gin.RouterGroup) {
	setup := rg.Group("/setup")
	{
		setup.GET("", h.Get)
		setup.PUT("", h.Update)
		setup.GET("/export", h.Export)
		setup.POST("/import", h.Import)
		setup.POST("/import/resolve", h.Resolve)
	}
}

// Get handles GET /api/v1/setup
func (h *SetupHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.sim.SetupView())
}

// Update replaces the active setup
func (h *SetupHandler) Update(c *gin.Context) {
	var req models.Setup
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.sim.UpdateSetup(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Export downloads the setup file
func (h *SetupHandler) Export(c *gin.Context) {
	name, data, err := h.sim.ExportSetup()
	if err != nil {
		fail(c, err)
		return
	}
	attachment(c, name, data)
}

// Import accepts the file either as the raw request body or as a multipart "file" field
func (h *SetupHandler) Import(c *gin.Context) {
	data, err := readUpload(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.sim.Import(c.Request.Context(), data)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type resolveRequest struct {
	Choice service.Choice `json:"choice" binding:"required"`
}

// Resolve applies the user's choice to the pending upload
func (h *SetupHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.sim.Resolve(c.Request.Context(), req.Choice)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// readUpload returns the uploaded file contents
func readUpload(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}

// attachment sends data as a download. Non-ASCII names are encoded as filename*.
func attachment(c *gin.Context, name string, data []byte) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, "application/json", data)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quillgit/trader-pos-sub000/internal/apierror"
	syncengine "github.com/quillgit/trader-pos-sub000/internal/sync"
)

type SyncHandler struct{ engine *syncengine.Engine }

func NewSyncHandler(engine *syncengine.Engine) *SyncHandler {
	return &SyncHandler{engine: engine}
}

// Trigger is the explicit user sync action: push then pull, synchronously,
// so the UI can report the outcome.
func (h *SyncHandler) Trigger(c *gin.Context) {
	if err := h.engine.TriggerSync(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, apierror.New(err.Error()))
		return
	}
	status, err := h.engine.Status(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.engine.Status(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// UpdateSettings forwards the settings document through the outbox.
func (h *SyncHandler) UpdateSettings(c *gin.Context) {
	var settings map[string]any
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return
	}
	if err := h.engine.PushSettings(c.Request.Context(), settings); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

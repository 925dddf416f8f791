package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/quillgit/trader-pos-sub000/internal/apierror"
	"github.com/quillgit/trader-pos-sub000/internal/ledger"
)

type SessionsHandler struct{ svc *ledger.Service }

func NewSessionsHandler(svc *ledger.Service) *SessionsHandler {
	return &SessionsHandler{svc: svc}
}

type openSessionRequest struct {
	StartAmount decimal.Decimal `json:"start_amount" validate:"min=0"`
}

func (h *SessionsHandler) Open(c *gin.Context) {
	var req openSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	sess, err := h.svc.Open(c.Request.Context(), req.StartAmount)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ledger.ErrSessionAlreadyOpen) {
			status = http.StatusConflict
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, sess)
}

type closeSessionRequest struct {
	EndAmount decimal.Decimal `json:"end_amount" validate:"min=0"`
}

func (h *SessionsHandler) Close(c *gin.Context) {
	var req closeSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	sess, err := h.svc.Close(c.Request.Context(), c.Param("id"), req.EndAmount)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ledger.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *SessionsHandler) Active(c *gin.Context) {
	sess, err := h.svc.Active(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, apierror.New("no open session"))
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *SessionsHandler) Balance(c *gin.Context) {
	id := c.Param("id")
	balance, err := h.svc.Balance(c.Request.Context(), id)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ledger.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "balance": balance})
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quillgit/trader-pos-sub000/internal/apierror"
	"github.com/quillgit/trader-pos-sub000/internal/ledger"
	"github.com/quillgit/trader-pos-sub000/internal/model"
	"github.com/quillgit/trader-pos-sub000/internal/service"
)

type TransactionsHandler struct{ svc *service.Writer }

func NewTransactionsHandler(svc *service.Writer) *TransactionsHandler {
	return &TransactionsHandler{svc: svc}
}

func writeStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrSessionExpired), errors.Is(err, ledger.ErrSessionClosed):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (h *TransactionsHandler) Create(c *gin.Context) {
	var tx model.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return
	}
	out, err := h.svc.RecordTransaction(c.Request.Context(), &tx)
	if err != nil {
		c.JSON(writeStatus(err), apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *TransactionsHandler) CreateExpense(c *gin.Context) {
	var exp model.Expense
	if err := c.ShouldBindJSON(&exp); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return
	}
	out, err := h.svc.RecordExpense(c.Request.Context(), &exp)
	if err != nil {
		c.JSON(writeStatus(err), apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *TransactionsHandler) CreateAttendance(c *gin.Context) {
	var ev model.Attendance
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return
	}
	out, err := h.svc.RecordAttendance(c.Request.Context(), &ev)
	if err != nil {
		c.JSON(writeStatus(err), apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *TransactionsHandler) CreateAdjustment(c *gin.Context) {
	var adj model.Adjustment
	if err := c.ShouldBindJSON(&adj); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return
	}
	out, err := h.svc.RecordAdjustment(c.Request.Context(), &adj)
	if err != nil {
		c.JSON(writeStatus(err), apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, out)
}

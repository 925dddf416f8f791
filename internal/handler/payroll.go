package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quillgit/trader-pos-sub000/internal/apierror"
	"github.com/quillgit/trader-pos-sub000/internal/payroll"
)

type PayrollHandler struct{ proc *payroll.Processor }

func NewPayrollHandler(proc *payroll.Processor) *PayrollHandler {
	return &PayrollHandler{proc: proc}
}

// Compute expects from/to as RFC3339 query params and work_days as an int.
func (h *PayrollHandler) Compute(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid from: "+err.Error()))
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid to: "+err.Error()))
		return
	}
	workDays, err := strconv.Atoi(c.Query("work_days"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid work_days"))
		return
	}

	res, err := h.proc.ComputeForEmployee(c.Request.Context(), c.Param("employeeID"), from, to, workDays)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, payroll.ErrEmployeeNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, res)
}

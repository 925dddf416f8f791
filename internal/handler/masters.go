package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quillgit/trader-pos-sub000/internal/apierror"
	"github.com/quillgit/trader-pos-sub000/internal/model"
	"github.com/quillgit/trader-pos-sub000/internal/service"
	"github.com/quillgit/trader-pos-sub000/internal/store"
)

type MastersHandler struct {
	svc *service.Writer
	st  store.Store
}

func NewMastersHandler(svc *service.Writer, st store.Store) *MastersHandler {
	return &MastersHandler{svc: svc, st: st}
}

func (h *MastersHandler) SaveProduct(c *gin.Context) {
	var p model.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return
	}
	if err := h.svc.SaveProduct(c.Request.Context(), &p); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *MastersHandler) SavePartner(c *gin.Context) {
	var p model.Partner
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return
	}
	if err := h.svc.SavePartner(c.Request.Context(), &p); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *MastersHandler) SaveEmployee(c *gin.Context) {
	var e model.Employee
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return
	}
	if err := h.svc.SaveEmployee(c.Request.Context(), &e); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *MastersHandler) DeleteProduct(c *gin.Context) {
	err := h.svc.DeleteMaster(c.Request.Context(), service.TypeProduct, store.ColProducts, c.Param("id"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}

// List streams a whole collection back to the UI; the store owns entity
// state, the UI only holds transient copies.
func (h *MastersHandler) List(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := h.st.Scan(c.Request.Context(), collection)
		if err != nil {
			c.Error(err)
			return
		}
		out := make([]any, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.Value)
		}
		c.JSON(http.StatusOK, out)
	}
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quillgit/trader-pos-sub000/internal/store"
)

// Health returns a JSON health check response. It verifies the local store
// answers; remote reachability is reported separately via /sync/status.
func Health(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		storeStatus := "ok"
		if _, err := st.Keys(c.Request.Context(), store.ColMeta); err != nil {
			storeStatus = "error"
		}

		status := http.StatusOK
		if storeStatus != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ok":    status == http.StatusOK,
			"store": storeStatus,
		})
	}
}

package router

import (
	"github.com/gin-gonic/gin"

	"github.com/quillgit/trader-pos-sub000/internal/config"
	"github.com/quillgit/trader-pos-sub000/internal/handler"
	"github.com/quillgit/trader-pos-sub000/internal/ledger"
	"github.com/quillgit/trader-pos-sub000/internal/middleware"
	"github.com/quillgit/trader-pos-sub000/internal/payroll"
	"github.com/quillgit/trader-pos-sub000/internal/service"
	"github.com/quillgit/trader-pos-sub000/internal/store"
	syncengine "github.com/quillgit/trader-pos-sub000/internal/sync"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service/Engine ← Store/Outbox
func New(cfg *config.Config, st store.Store, sessions *ledger.Service, writer *service.Writer, proc *payroll.Processor, engine *syncengine.Engine) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())

	sessionsH := handler.NewSessionsHandler(sessions)
	txH := handler.NewTransactionsHandler(writer)
	payrollH := handler.NewPayrollHandler(proc)
	syncH := handler.NewSyncHandler(engine)
	mastersH := handler.NewMastersHandler(writer, st)

	r.GET("/health", handler.Health(st))

	v1 := r.Group("/v1")
	{
		v1.POST("/sessions/open", sessionsH.Open)
		v1.POST("/sessions/:id/close", sessionsH.Close)
		v1.GET("/sessions/active", sessionsH.Active)
		v1.GET("/sessions/:id/balance", sessionsH.Balance)

		v1.POST("/transactions", txH.Create)
		v1.POST("/expenses", txH.CreateExpense)
		v1.POST("/attendance", txH.CreateAttendance)
		v1.POST("/adjustments", txH.CreateAdjustment)

		v1.GET("/payroll/:employeeID", payrollH.Compute)

		v1.POST("/sync/trigger", syncH.Trigger)
		v1.GET("/sync/status", syncH.Status)
		v1.POST("/settings", syncH.UpdateSettings)

		v1.POST("/products", mastersH.SaveProduct)
		v1.DELETE("/products/:id", mastersH.DeleteProduct)
		v1.GET("/products", mastersH.List(store.ColProducts))
		v1.POST("/partners", mastersH.SavePartner)
		v1.GET("/partners", mastersH.List(store.ColPartners))
		v1.POST("/employees", mastersH.SaveEmployee)
		v1.GET("/employees", mastersH.List(store.ColEmployees))
	}

	return r
}

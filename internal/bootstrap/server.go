package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	appsync "github.com/ecomsync/feedsync/internal/application/sync"
	"github.com/ecomsync/feedsync/internal/infrastructure/repository"
	httpecho "github.com/ecomsync/feedsync/internal/interfaces/http/echo"
)

// NewHTTPServer assembles the API surface: sync triggers, job status,
// cancellation, and row-log reads.
func NewHTTPServer(db *gorm.DB, pool *pgxpool.Pool, trigger appsync.TriggerSync) *echo.Echo {
	server := echo.New()
	server.HideBanner = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit("1M"))

	jobRepo := repository.NewJobRepository(db)
	rowLogRepo := repository.NewRowLogRepository(pool, db)

	syncHandler := httpecho.NewSyncHandler(trigger)
	jobHandler := httpecho.NewJobHandler(
		appsync.NewGetJob(jobRepo),
		appsync.NewCancelJob(jobRepo),
		appsync.NewListRowLogs(jobRepo, rowLogRepo),
	)

	httpecho.RegisterRoutes(server, syncHandler, jobHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	return server
}

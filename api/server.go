package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"

	"github.com/webpiratt/dca-protocol/config"
	"github.com/webpiratt/dca-protocol/internal/dca"
	"github.com/webpiratt/dca-protocol/internal/validation"
	"github.com/webpiratt/dca-protocol/storage"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{
		Message: message,
	}
}

type Server struct {
	cfg          *config.Config
	manager      *dca.Manager
	db           storage.DatabaseStorage
	redis        *storage.RedisStorage
	blockStorage *storage.BlockStorage
	client       *asynq.Client
	inspector    *asynq.Inspector
	sdClient     *statsd.Client
	logger       *logrus.Logger
}

// NewServer returns a new server.
func NewServer(
	cfg *config.Config,
	manager *dca.Manager,
	db storage.DatabaseStorage,
	redis *storage.RedisStorage,
	blockStorage *storage.BlockStorage,
	client *asynq.Client,
	inspector *asynq.Inspector,
	sdClient *statsd.Client,
	logger *logrus.Logger,
) *Server {
	return &Server{
		cfg:          cfg,
		manager:      manager,
		db:           db,
		redis:        redis,
		blockStorage: blockStorage,
		client:       client,
		inspector:    inspector,
		sdClient:     sdClient,
		logger:       logger,
	}
}

func (s *Server) StartServer() error {
	e := echo.New()
	e.Logger.SetLevel(log.DEBUG)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M")) // set maximum allowed size for a request body to 2M
	e.Use(s.statsdMiddleware)
	e.Use(middleware.CORS())
	limiterStore := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: 5, Burst: 30, ExpiresIn: 5 * time.Minute},
	)
	e.Use(middleware.RateLimiter(limiterStore))

	e.Validator = &validation.RequestValidator{Validator: validator.New()}

	e.GET("/ping", s.Ping)

	grp := e.Group("/schedule")
	grp.POST("", s.CreateSchedule)
	grp.PUT("", s.UpdateSchedule)
	grp.DELETE("/:token/:index", s.DeleteSchedule)
	grp.GET("/:token", s.GetSchedules)
	grp.GET("/:token/:index", s.GetSchedule)
	grp.GET("/:token/:index/history", s.GetPurchaseHistory)
	grp.GET("/:token/:index/events", s.GetScheduleEvents)
	grp.POST("/deposit", s.DepositToken)
	grp.POST("/withdraw", s.WithdrawToken)
	grp.POST("/purchase-amount", s.SetPurchaseAmount)
	grp.POST("/purchase-period", s.SetPurchasePeriod)

	swapGroup := e.Group("/swap")
	swapGroup.POST("/buy", s.BuyRbtc)
	swapGroup.POST("/batch", s.SubmitBatchPurchase)
	swapGroup.GET("/batch/:taskId", s.GetBatchPurchaseResult)

	withdrawGroup := e.Group("/withdrawals")
	withdrawGroup.GET("/interest", s.GetAccruedInterest)
	withdrawGroup.POST("/interest", s.WithdrawInterest)
	withdrawGroup.POST("/interest/all", s.WithdrawAllInterest)
	withdrawGroup.GET("/rbtc", s.GetAccumulatedRbtc)
	withdrawGroup.POST("/rbtc", s.WithdrawRbtc)
	withdrawGroup.POST("/rbtc/all", s.WithdrawAllRbtc)

	adminGroup := e.Group("/admin")
	adminGroup.POST("/limits/min-period", s.SetMinPurchasePeriod)
	adminGroup.POST("/limits/max-schedules", s.SetMaxSchedulesPerToken)
	adminGroup.POST("/limits/min-purchase-amount", s.SetMinPurchaseAmount)
	adminGroup.POST("/fees/rates", s.SetFeeRates)
	adminGroup.POST("/fees/bounds", s.SetFeeBounds)
	adminGroup.POST("/backup", s.BackupSchedules)

	return e.Start(fmt.Sprintf(":%d", s.cfg.Server.Port))
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "DCA protocol server is running")
}

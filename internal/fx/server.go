package fx

import (
	"context"

	"Aporte/config"
	"Aporte/internal/domain/contribution"
	"Aporte/internal/logger"
	"Aporte/internal/middleware"
	"Aporte/internal/routes"

	docs "Aporte/docs"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"go.uber.org/fx"
)

// ServerModule fornece a configuração do servidor HTTP
var ServerModule = fx.Module("server",
	fx.Provide(
		newRouter,
	),
	fx.Invoke(
		setupRoutes,
	),
)

func newRouter() *gin.Engine {
	return gin.Default()
}

func setupRoutes(
	lc fx.Lifecycle,
	cfg *config.Config,
	router *gin.Engine,
	handler *routes.Handler,
	jwtSvc *middleware.JwtService,
	authRateLimiter *middleware.RateLimiter,
	flows *contribution.Manager,
	sync *contribution.SyncManager,
	audit *contribution.AuditLogger,
) {
	router.Use(middleware.Cors())

	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	public := router.Group("/api")
	public.Use(middleware.RateLimit(authRateLimiter))
	{
		public.POST("/auth/login", handler.Authenticate)
		public.POST("/auth/register", handler.Registration)
	}

	private := router.Group("/api")
	private.Use(jwtSvc.AuthMiddleware())
	private.Use(middleware.RateLimitByUser())
	{
		goals := private.Group("/goals")
		{
			goals.POST("", handler.CreateGoal)
			goals.GET("", handler.ListGoals)
			goals.GET("/:id", handler.GetGoal)
			goals.PATCH("/:id", handler.UpdateGoal)
			goals.DELETE("/:id", handler.CancelGoal)
			goals.GET("/:id/progress", handler.GetGoalProgress)
			goals.GET("/:id/contributions", handler.GetGoalContributions)
			goals.GET("/:id/transactions", handler.GetGoalTransactions)
		}

		accounts := private.Group("/accounts")
		{
			accounts.POST("", handler.CreateAccount)
			accounts.GET("", handler.ListAccounts)
			accounts.GET("/:id", handler.GetAccount)
		}

		contributionFlows := private.Group("/contribution-flows")
		{
			contributionFlows.POST("", handler.OpenContributionFlow)
			contributionFlows.GET("/:flowId", handler.GetContributionFlow)
			contributionFlows.GET("/:flowId/goals", handler.GetEligibleGoals)
			contributionFlows.POST("/:flowId/goal", handler.SelectFlowGoal)
			contributionFlows.PATCH("/:flowId/draft", handler.PatchFlowDraft)
			contributionFlows.POST("/:flowId/proceed", handler.ProceedFlow)
			contributionFlows.POST("/:flowId/back", handler.FlowBack)
			contributionFlows.POST("/:flowId/confirm", handler.ConfirmFlow)
			contributionFlows.DELETE("/:flowId", handler.CancelFlow)
		}
	}

	serverAddr := ":" + cfg.Server.Port
	logger.Info().
		Str("address", serverAddr).
		Str("environment", cfg.App.Environment).
		Msg("Servidor iniciando")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sync.Start(ctx); err != nil {
				return err
			}
			go func() {
				if err := router.Run(serverAddr); err != nil {
					logger.Fatal().Err(err).Msg("Falha ao iniciar servidor")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Servidor parando...")
			sync.Close()
			flows.Shutdown()
			audit.Wait()
			return nil
		},
	})
}

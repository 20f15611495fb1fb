package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/spivanka/spivanka/docs"
	"github.com/spivanka/spivanka/internal/config"
	"github.com/spivanka/spivanka/internal/middleware"
	"github.com/spivanka/spivanka/internal/modules/handler"
	"github.com/spivanka/spivanka/internal/modules/serializer"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	Config            *config.Config
	Log               *zap.Logger
	GenerationHandler *handler.GenerationHandler
	GreetingHandler   *handler.GreetingHandler
	AdminHandler      *handler.AdminHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if d.Config.Telemetry.Enabled && d.Config.Telemetry.OtlpEndpoint != "" {
		r.Use(middleware.OtelTracing(d.Config.App.Name))
		r.Use(middleware.TraceID())
	}

	r.Use(middleware.ZapLogger(d.Log))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	// swagger
	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		generation := v1.Group("/generation")
		{
			generation.POST("", d.GenerationHandler.Submit)
			generation.GET("/:task_id", d.GenerationHandler.GetStatus)
			generation.GET("/:task_id/stream", d.GenerationHandler.Stream)
			generation.PUT("/:task_id/text", d.GenerationHandler.UpdateText)
			generation.POST("/:task_id/retry", d.GenerationHandler.Retry)
		}

		greeting := v1.Group("/greeting")
		{
			greeting.GET("", d.GreetingHandler.List)
			greeting.GET("/:task_id", d.GreetingHandler.GetByTaskID)
		}

		// public promo redemption (checkout flow)
		v1.POST("/promo/redeem", d.AdminHandler.RedeemPromo)

		admin := v1.Group("/admin")
		{
			admin.Use(middleware.AdminAuth(d.Config))

			promo := admin.Group("/promo")
			{
				promo.GET("", d.AdminHandler.ListPromos)
				promo.POST("", d.AdminHandler.CreatePromo)
				promo.PUT("/:id", d.AdminHandler.UpdatePromo)
				promo.DELETE("/:id", d.AdminHandler.DeletePromo)
			}

			block := admin.Group("/text_block")
			{
				block.GET("", d.AdminHandler.ListTextBlocks)
				block.POST("", d.AdminHandler.UpsertTextBlock)
				block.DELETE("/:id", d.AdminHandler.DeleteTextBlock)
			}

			setting := admin.Group("/setting")
			{
				setting.GET("", d.AdminHandler.ListSettings)
				setting.GET("/:key", d.AdminHandler.GetSetting)
				setting.PUT("/:key", d.AdminHandler.UpsertSetting)
			}

			payment := admin.Group("/payment")
			{
				payment.GET("", d.AdminHandler.ListPayments)
				payment.PUT("/:id", d.AdminHandler.UpdatePayment)
			}
		}
	}
	return r
}

package router

import (
	"fmt"
	"strings"

	"github.com/nutriplan/payments/internal/cache"
	"github.com/nutriplan/payments/internal/config"
	"github.com/nutriplan/payments/internal/constants"
	publichandlers "github.com/nutriplan/payments/internal/http/handlers/public"
	"github.com/nutriplan/payments/internal/logger"
	"github.com/nutriplan/payments/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter builds the gin engine.
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	redisClient := cache.Client()
	paymentCreateRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:payment_create", redisPrefix),
		WindowSeconds: cfg.Payment.CreateRateLimit.WindowSeconds,
		MaxRequests:   cfg.Payment.CreateRateLimit.MaxRequests,
		Message:       "too many payment attempts",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// Open endpoints.
		public := apiV1.Group("/public")
		{
			public.GET("/plans", publicHandler.GetPlans)
		}

		// Provider callbacks carry their own credentials, not JWT.
		apiV1.POST("/webhooks/stripe", publicHandler.StripeWebhook)
		apiV1.POST("/webhooks/asaas", publicHandler.AsaasWebhook)

		// Operational endpoints, closed unless an ops token is configured.
		ops := apiV1.Group("/ops")
		ops.Use(OpsTokenAuthMiddleware(cfg.Auth.OpsToken))
		{
			ops.GET("/webhooks", publicHandler.ListWebhooks)
			ops.POST("/webhooks/replay", publicHandler.ReplayWebhooks)
		}

		// Customer endpoints.
		customer := apiV1.Group("")
		customer.Use(CustomerJWTAuthMiddleware(cfg.Auth.JWTSecret, c.CustomerRepo))
		{
			customer.POST("/payments", RateLimitMiddleware(redisClient, paymentCreateRule, KeyByCustomer), publicHandler.CreatePayment)
			customer.POST("/payments/confirm", publicHandler.ConfirmPayment)
			customer.POST("/payments/:payment_id/refund", publicHandler.RefundPayment)
			customer.GET("/payments", publicHandler.ListPayments)
			customer.GET("/payments/:payment_id", publicHandler.GetPayment)

			customer.POST("/cards", publicHandler.AddCard)
			customer.GET("/cards", publicHandler.ListCards)
			customer.PUT("/cards/:id/default", publicHandler.SetDefaultCard)
			customer.DELETE("/cards/:id", publicHandler.DeleteCard)

			customer.POST("/subscriptions", publicHandler.CreateSubscription)
			customer.GET("/subscriptions", publicHandler.ListSubscriptions)
			customer.GET("/subscriptions/active", publicHandler.GetActiveSubscription)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

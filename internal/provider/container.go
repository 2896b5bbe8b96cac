package provider

import (
	"github.com/nutriplan/payments/internal/cache"
	"github.com/nutriplan/payments/internal/config"
	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/gateway"
	"github.com/nutriplan/payments/internal/gateway/asaas"
	"github.com/nutriplan/payments/internal/gateway/stripe"
	"github.com/nutriplan/payments/internal/logger"
	"github.com/nutriplan/payments/internal/models"
	"github.com/nutriplan/payments/internal/queue"
	"github.com/nutriplan/payments/internal/repository"
	"github.com/nutriplan/payments/internal/service"
)

// Container is the dependency injection container, built once at startup.
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Gateways    *gateway.Registry

	// Repositories
	CustomerRepo  repository.CustomerRepository
	PaymentRepo   repository.PaymentRepository
	CardRepo      repository.PaymentCardRepository
	PlanRepo      repository.PaymentPlanRepository
	RecurringRepo repository.PaymentRecurringRepository
	WebhookRepo   repository.PaymentWebhookRepository

	// Services
	PaymentService   *service.PaymentService
	CardService      *service.CardService
	PlanService      *service.PlanService
	RecurringService *service.RecurringService
	WebhookService   *service.WebhookService
}

// NewContainer builds the container.
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	qc, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
	} else {
		queueClient = qc
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initGateways()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.CustomerRepo = repository.NewCustomerRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.CardRepo = repository.NewPaymentCardRepository(db)
	c.PlanRepo = repository.NewPaymentPlanRepository(db)
	c.RecurringRepo = repository.NewPaymentRecurringRepository(db)
	c.WebhookRepo = repository.NewPaymentWebhookRepository(db)
}

// initGateways binds payment methods to provider adapters. A provider with
// missing credentials stays unbound; intents on its methods become logged
// pending gaps instead of startup failures.
func (c *Container) initGateways() {
	registry := gateway.NewRegistry()

	stripeClient, err := stripe.New(&stripe.Config{
		SecretKey:      c.Config.Gateways.Stripe.SecretKey,
		APIBaseURL:     c.Config.Gateways.Stripe.APIBaseURL,
		TimeoutSeconds: c.Config.Payment.GatewayTimeoutSeconds,
	})
	if err != nil {
		logger.Warnw("provider_stripe_gateway_unbound", "error", err)
	} else {
		registry.Register(constants.PaymentMethodCard, stripeClient)
		registry.Register(constants.PaymentMethodDebit, stripeClient)
	}

	asaasClient, err := asaas.New(&asaas.Config{
		APIKey:         c.Config.Gateways.Asaas.APIKey,
		APIBaseURL:     c.Config.Gateways.Asaas.APIBaseURL,
		TimeoutSeconds: c.Config.Payment.GatewayTimeoutSeconds,
	})
	if err != nil {
		logger.Warnw("provider_asaas_gateway_unbound", "error", err)
	} else {
		registry.Register(constants.PaymentMethodPix, asaasClient)
	}

	c.Gateways = registry
}

func (c *Container) initServices() {
	c.PlanService = service.NewPlanService(c.PlanRepo, c.Config.Payment.PlanCacheTTLSeconds)
	c.CardService = service.NewCardService(c.CardRepo, c.CustomerRepo)
	c.PaymentService = service.NewPaymentService(c.PaymentRepo, c.CustomerRepo, c.CardRepo, c.Gateways, c.QueueClient, c.Config.Payment)
	c.RecurringService = service.NewRecurringService(c.RecurringRepo, c.CustomerRepo, c.CardRepo, c.PlanService, c.Gateways, c.Config.Payment)
	c.WebhookService = service.NewWebhookService(c.WebhookRepo, c.PaymentService, c.RecurringService, c.QueueClient, c.Config.Gateways)
}

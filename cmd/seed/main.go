package main

import (
	"context"
	"fmt"

	"github.com/nutriplan/payments/internal/cache"
	"github.com/nutriplan/payments/internal/config"
	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/logger"
	"github.com/nutriplan/payments/internal/models"
	"github.com/nutriplan/payments/internal/repository"
	"github.com/nutriplan/payments/internal/service"

	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	plans := []models.PaymentPlan{
		{
			Code:          "basic-monthly",
			Name:          "Basic Monthly",
			Description:   "Basic meal plan, billed every month",
			Amount:        models.NewMoneyFromDecimal(decimal.NewFromFloat(29.90)),
			Currency:      constants.CurrencyDefault,
			Interval:      constants.BillingIntervalMonthly,
			StripePriceID: "price_basic_monthly",
			AsaasPlanID:   "basic-monthly",
			Active:        true,
		},
		{
			Code:          "basic-yearly",
			Name:          "Basic Yearly",
			Description:   "Basic meal plan, billed once a year",
			Amount:        models.NewMoneyFromDecimal(decimal.NewFromFloat(299.00)),
			Currency:      constants.CurrencyDefault,
			Interval:      constants.BillingIntervalYearly,
			StripePriceID: "price_basic_yearly",
			AsaasPlanID:   "basic-yearly",
			Active:        true,
		},
		{
			Code:          "premium-monthly",
			Name:          "Premium Monthly",
			Description:   "Premium meal plan with nutritionist review, billed every month",
			Amount:        models.NewMoneyFromDecimal(decimal.NewFromFloat(59.90)),
			Currency:      constants.CurrencyDefault,
			Interval:      constants.BillingIntervalMonthly,
			StripePriceID: "price_premium_monthly",
			AsaasPlanID:   "premium-monthly",
			Active:        true,
		},
		{
			Code:          "premium-yearly",
			Name:          "Premium Yearly",
			Description:   "Premium meal plan with nutritionist review, billed once a year",
			Amount:        models.NewMoneyFromDecimal(decimal.NewFromFloat(599.00)),
			Currency:      constants.CurrencyDefault,
			Interval:      constants.BillingIntervalYearly,
			StripePriceID: "price_premium_yearly",
			AsaasPlanID:   "premium-yearly",
			Active:        true,
		},
		{
			Code:        "legacy-quarterly",
			Name:        "Legacy Quarterly",
			Description: "Retired quarterly plan, kept for existing agreements",
			Amount:      models.NewMoneyFromDecimal(decimal.NewFromFloat(79.90)),
			Currency:    constants.CurrencyDefault,
			Interval:    constants.BillingIntervalQuarterly,
			Active:      false,
		},
	}

	for _, plan := range plans {
		var existing models.PaymentPlan
		if err := models.DB.Where("code = ?", plan.Code).First(&existing).Error; err != nil {
			if err := models.DB.Create(&plan).Error; err != nil {
				stdLog.Printf("Failed to create plan %s: %v", plan.Code, err)
			} else {
				stdLog.Printf("Created plan: %s", plan.Code)
			}
		} else {
			existing.Name = plan.Name
			existing.Description = plan.Description
			existing.Amount = plan.Amount
			existing.Currency = plan.Currency
			existing.Interval = plan.Interval
			existing.StripePriceID = plan.StripePriceID
			existing.AsaasPlanID = plan.AsaasPlanID
			existing.Active = plan.Active
			if err := models.DB.Save(&existing).Error; err != nil {
				stdLog.Printf("Failed to update plan %s: %v", plan.Code, err)
			} else {
				stdLog.Printf("Updated plan: %s", plan.Code)
			}
		}
	}

	demoCustomer := models.Customer{
		Name:             "Demo Customer",
		Email:            "demo@example.com",
		Document:         "12345678909",
		StripeCustomerID: "cus_demo_local",
		AsaasCustomerID:  "cus_000000000001",
	}
	var existingCustomer models.Customer
	if err := models.DB.Where("email = ?", demoCustomer.Email).First(&existingCustomer).Error; err != nil {
		if err := models.DB.Create(&demoCustomer).Error; err != nil {
			stdLog.Printf("Failed to create demo customer: %v", err)
		} else {
			stdLog.Printf("Created demo customer: %s", demoCustomer.Email)
			existingCustomer = demoCustomer
		}
	} else {
		stdLog.Printf("Demo customer already exists: %s", existingCustomer.Email)
	}

	if existingCustomer.ID != 0 {
		token, err := service.IssueCustomerToken(cfg.Auth.JWTSecret, existingCustomer.ID, existingCustomer.Email, cfg.Auth.ExpireHours)
		if err != nil {
			stdLog.Printf("Failed to issue demo token: %v", err)
		} else {
			fmt.Printf("\nDemo bearer token (customer %d):\n%s\n", existingCustomer.ID, token)
		}
	}

	if err := cache.InitRedis(&cfg.Redis); err != nil {
		stdLog.Printf("Redis unavailable, skipping plan cache invalidation: %v", err)
	} else {
		planService := service.NewPlanService(repository.NewPaymentPlanRepository(models.DB), cfg.Payment.PlanCacheTTLSeconds)
		planService.InvalidatePlanCache(context.Background())
	}

	fmt.Println("\nSeed finished:")
	fmt.Println("- 5 plans (4 active, 1 retired)")
	fmt.Println("- 1 demo customer with provider customer ids")
}

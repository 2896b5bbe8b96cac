package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nutriplan/payments/internal/cache"
	"github.com/nutriplan/payments/internal/logger"
	"github.com/nutriplan/payments/internal/models"
	"github.com/nutriplan/payments/internal/repository"
)

const planCacheKey = "plans:active"

// PlanService serves the read-mostly plan catalog with a redis cache in
// front of the table.
type PlanService struct {
	planRepo repository.PaymentPlanRepository
	cacheTTL time.Duration
}

// NewPlanService creates a plan service.
func NewPlanService(planRepo repository.PaymentPlanRepository, cacheTTLSeconds int) *PlanService {
	ttl := time.Duration(cacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PlanService{planRepo: planRepo, cacheTTL: ttl}
}

// ListActivePlans lists plans available for sale, cached.
func (s *PlanService) ListActivePlans(ctx context.Context) ([]models.PaymentPlan, error) {
	var cached []models.PaymentPlan
	hit, err := cache.GetJSON(ctx, planCacheKey, &cached)
	if err != nil {
		logger.Warnw("plan_cache_read_failed", "error", err)
	}
	if hit {
		return cached, nil
	}

	plans, err := s.planRepo.ListActive()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := cache.SetJSON(ctx, planCacheKey, plans, s.cacheTTL); err != nil {
		logger.Warnw("plan_cache_write_failed", "error", err)
	}
	return plans, nil
}

// GetActivePlanByCode fetches a plan by code, rejecting inactive plans.
func (s *PlanService) GetActivePlanByCode(code string) (*models.PaymentPlan, error) {
	plan, err := s.planRepo.GetByCode(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if !plan.Active {
		return nil, ErrPlanInactive
	}
	return plan, nil
}

// InvalidatePlanCache drops the cached catalog, used after seeding.
func (s *PlanService) InvalidatePlanCache(ctx context.Context) {
	if err := cache.Del(ctx, planCacheKey); err != nil {
		logger.Warnw("plan_cache_invalidate_failed", "error", err)
	}
}

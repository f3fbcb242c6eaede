package tokens

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Habibi330/anexo-lookup-bot/internal/domain/rules"
	pgrepo "github.com/Habibi330/anexo-lookup-bot/internal/repo/postgres"
)

var ErrValidation = errors.New("validation error")

type Repo interface {
	InsertBatch(ctx context.Context, codes []string, planDays int) error
	ListUnused(ctx context.Context, limit int) ([]pgrepo.UnusedTokenRecord, error)
}

type PlanGroup struct {
	PlanDays int
	Codes    []string
}

type Service struct {
	repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo}
}

// CreateBatch generates qty fresh codes for the given plan and stores them.
func (s *Service) CreateBatch(ctx context.Context, planDays, qty int) ([]string, error) {
	if !rules.ValidPlanDays(planDays) {
		return nil, ErrValidation
	}
	if qty < rules.MinTokenBatch || qty > rules.MaxTokenBatch {
		return nil, ErrValidation
	}

	codes := make([]string, 0, qty)
	for i := 0; i < qty; i++ {
		code, err := rules.NewTokenCode()
		if err != nil {
			return nil, fmt.Errorf("generate token code: %w", err)
		}
		codes = append(codes, code)
	}

	if err := s.repo.InsertBatch(ctx, codes, planDays); err != nil {
		return nil, fmt.Errorf("insert token batch: %w", err)
	}
	return codes, nil
}

// ListUnused returns codes not yet activated, grouped by plan, shortest
// plan first.
func (s *Service) ListUnused(ctx context.Context, limit int) ([]PlanGroup, error) {
	recs, err := s.repo.ListUnused(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unused tokens: %w", err)
	}

	byPlan := make(map[int][]string)
	for _, rec := range recs {
		byPlan[rec.PlanDays] = append(byPlan[rec.PlanDays], rec.Code)
	}

	plans := make([]int, 0, len(byPlan))
	for plan := range byPlan {
		plans = append(plans, plan)
	}
	sort.Ints(plans)

	groups := make([]PlanGroup, 0, len(plans))
	for _, plan := range plans {
		groups = append(groups, PlanGroup{PlanDays: plan, Codes: byPlan[plan]})
	}
	return groups, nil
}

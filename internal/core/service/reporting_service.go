package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/forteclube/forte-payments/internal/core/ports"
)

const reportCacheTTL = 60 * time.Second

// CollectionReport is the admin view of dues collection.
type CollectionReport struct {
	EligibleMembers int64   `json:"eligible_members"`
	PayingMembers   int64   `json:"paying_members"`
	PendingMembers  int64   `json:"pending_members"`
	CollectionRate  float64 `json:"collection_rate"`
	GeneratedAt     string  `json:"generated_at"`
}

// LedgerReport sums ledger amounts by category inside a date range.
type LedgerReport struct {
	From             string           `json:"from"`
	To               string           `json:"to"`
	TotalsByCategory map[string]int64 `json:"totals_by_category_cents"`
	NetCents         int64            `json:"net_cents"`
}

// ReportingService builds the derived, read-only views consumed by the admin
// UI, cached briefly since they aggregate over whole tables.
type ReportingService struct {
	reporting ports.ReportingRepository
	ledger    ports.LedgerRepository
	cache     ports.ReportCache
	clock     func() time.Time
}

// NewReportingService creates a reporting service.
func NewReportingService(reporting ports.ReportingRepository, ledger ports.LedgerRepository, cache ports.ReportCache) *ReportingService {
	return &ReportingService{reporting: reporting, ledger: ledger, cache: cache, clock: time.Now}
}

// CollectionRate computes paying eligible members over total eligible
// members.
func (s *ReportingService) CollectionRate(ctx context.Context) (*CollectionReport, error) {
	const key = "report:collection"
	if cached, ok := s.cacheGet(ctx, key); ok {
		var report CollectionReport
		if err := json.Unmarshal([]byte(cached), &report); err == nil {
			return &report, nil
		}
	}

	eligible, err := s.reporting.CountEligibleMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count eligible members: %w", err)
	}
	paying, err := s.reporting.CountActiveSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active subscribers: %w", err)
	}

	rate := 0.0
	if eligible > 0 {
		rate = float64(paying) / float64(eligible)
	}
	report := &CollectionReport{
		EligibleMembers: eligible,
		PayingMembers:   paying,
		PendingMembers:  eligible - paying,
		CollectionRate:  rate,
		GeneratedAt:     s.clock().Format(time.RFC3339),
	}

	s.cacheSet(ctx, key, report)
	return report, nil
}

// LedgerTotals aggregates signed ledger amounts per category for the range.
func (s *ReportingService) LedgerTotals(ctx context.Context, from, to time.Time) (*LedgerReport, error) {
	key := fmt.Sprintf("report:ledger:%s:%s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	if cached, ok := s.cacheGet(ctx, key); ok {
		var report LedgerReport
		if err := json.Unmarshal([]byte(cached), &report); err == nil {
			return &report, nil
		}
	}

	totals, err := s.ledger.TotalsByCategory(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}

	var net int64
	for _, v := range totals {
		net += v
	}
	report := &LedgerReport{
		From:             from.Format(time.DateOnly),
		To:               to.Format(time.DateOnly),
		TotalsByCategory: totals,
		NetCents:         net,
	}

	s.cacheSet(ctx, key, report)
	return report, nil
}

func (s *ReportingService) cacheGet(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	return s.cache.Get(ctx, key)
}

func (s *ReportingService) cacheSet(ctx context.Context, key string, report any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	s.cache.Set(ctx, key, string(raw), reportCacheTTL)
}

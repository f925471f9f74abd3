// Package financials computes contract values and balances from quotes and
// payments. The scheduler consumes it as a black box.
package financials

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"

	"studio-scheduler-service/internal/scheduler-manager/db"
)

type QuoteTotals struct {
	Subtotal        float64 `json:"subtotal"`
	DiscountApplied float64 `json:"discount_applied"`
	TotalPayable    float64 `json:"total_payable"`
	TotalCost       float64 `json:"total_cost"`
}

type QuoteBreakdown struct {
	QuoteID string      `json:"quote_id"`
	Name    string      `json:"name"`
	Status  string      `json:"status"`
	Totals  QuoteTotals `json:"totals"`
}

type Summary struct {
	ContractValue float64          `json:"contract_value"`
	PaidAmount    float64          `json:"paid_amount"`
	PendingAmount float64          `json:"pending_amount"`
	PerQuote      []QuoteBreakdown `json:"per_quote"`
}

type Provider interface {
	ComputeTotals(q db.Quote) QuoteTotals
	GetFinancials(ctx context.Context, studioID, promiseID string) (*Summary, error)
}

type DBProvider struct {
	DB *gorm.DB
}

func NewDBProvider(gormDB *gorm.DB) *DBProvider {
	return &DBProvider{DB: gormDB}
}

// ComputeTotals sums line items and applies the quote discount, never going
// below zero.
func (p *DBProvider) ComputeTotals(q db.Quote) QuoteTotals {
	var t QuoteTotals
	for _, it := range q.Items {
		qty := float64(it.Quantity)
		if qty <= 0 {
			qty = 1
		}
		t.Subtotal += it.UnitPrice * qty
		t.TotalCost += it.Cost * qty
	}
	t.DiscountApplied = math.Min(q.DiscountAmount, t.Subtotal)
	t.TotalPayable = round2(t.Subtotal - t.DiscountApplied)
	t.Subtotal = round2(t.Subtotal)
	t.TotalCost = round2(t.TotalCost)
	return t
}

// GetFinancials reports contract value (approved quotes) against paid amounts.
func (p *DBProvider) GetFinancials(ctx context.Context, studioID, promiseID string) (*Summary, error) {
	var quotes []db.Quote
	if err := p.DB.WithContext(ctx).Preload("Items").
		Where("studio_id = ? AND promise_id = ?", studioID, promiseID).
		Order("created_at").Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("load quotes for promise %s: %w", promiseID, err)
	}

	s := &Summary{PerQuote: make([]QuoteBreakdown, 0, len(quotes))}
	for _, q := range quotes {
		totals := p.ComputeTotals(q)
		s.PerQuote = append(s.PerQuote, QuoteBreakdown{QuoteID: q.ID, Name: q.Name, Status: q.Status, Totals: totals})
		if q.Status == db.QuoteStatusApproved {
			s.ContractValue += totals.TotalPayable
		}
	}

	var paid struct{ Total float64 }
	if err := p.DB.WithContext(ctx).Model(&db.Payment{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("studio_id = ? AND promise_id = ? AND status = ?", studioID, promiseID, "paid").
		Scan(&paid).Error; err != nil {
		return nil, fmt.Errorf("sum payments for promise %s: %w", promiseID, err)
	}
	s.ContractValue = round2(s.ContractValue)
	s.PaidAmount = round2(paid.Total)
	s.PendingAmount = round2(math.Max(s.ContractValue-s.PaidAmount, 0))
	return s, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

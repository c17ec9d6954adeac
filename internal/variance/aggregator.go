// Package variance computes financial variance aggregates from the
// persisted commitment and actual tables and scans them for
// threshold breaches. Aggregates are a materialized view: they are
// fully reproducible from the source tables and are replaced, never
// appended to, on every recompute.
package variance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tracelight/ppm-backend/internal/domain"
	"github.com/tracelight/ppm-backend/internal/store"
)

// Classification thresholds: under below 0.95x commitment, on within
// [0.95x, 1.05x], over above.
var (
	lowerThreshold = decimal.RequireFromString("0.95")
	upperThreshold = decimal.RequireFromString("1.05")
)

// Aggregator recomputes variance rows grouped by
// (project number, WBS element).
type Aggregator struct {
	commitments store.CommitmentStore
	actuals     store.ActualStore
	variances   store.VarianceStore
	log         zerolog.Logger
}

// NewAggregator creates a variance aggregator over the given stores.
func NewAggregator(commitments store.CommitmentStore, actuals store.ActualStore, variances store.VarianceStore, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		commitments: commitments,
		actuals:     actuals,
		variances:   variances,
		log:         log,
	}
}

// groupKey identifies one aggregate row.
type groupKey struct {
	ProjectNumber string
	WBSElement    string
}

// Recompute aggregates the currently persisted commitments and
// actuals, optionally restricted to the given project numbers, and
// replaces the stored rows for the recomputed groups. Calling it
// twice with no intervening writes yields identical output: groups
// are emitted in sorted key order and all arithmetic is decimal.
func (a *Aggregator) Recompute(ctx context.Context, projectNumbers ...string) ([]*domain.FinancialVariance, error) {
	commitments, err := a.commitments.List(ctx, projectNumbers...)
	if err != nil {
		return nil, fmt.Errorf("Recompute: list commitments: %w", err)
	}
	actuals, err := a.actuals.List(ctx, projectNumbers...)
	if err != nil {
		return nil, fmt.Errorf("Recompute: list actuals: %w", err)
	}

	type totals struct {
		commitment decimal.Decimal
		actual     decimal.Decimal
		currency   string
		projectID  *string
	}
	groups := make(map[groupKey]*totals)

	group := func(projectNumber, wbsElement, currency string, projectID *string) *totals {
		key := groupKey{ProjectNumber: projectNumber, WBSElement: wbsElement}
		t, ok := groups[key]
		if !ok {
			t = &totals{currency: currency, projectID: projectID}
			groups[key] = t
		}
		return t
	}

	for _, c := range commitments {
		t := group(c.ProjectNumber, c.WBSElement, c.Currency, c.ProjectID)
		t.commitment = t.commitment.Add(c.TotalAmount)
	}
	for _, act := range actuals {
		t := group(act.ProjectNumber, act.WBSElement, act.Currency, act.ProjectID)
		t.actual = t.actual.Add(act.Amount)
	}

	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProjectNumber != keys[j].ProjectNumber {
			return keys[i].ProjectNumber < keys[j].ProjectNumber
		}
		return keys[i].WBSElement < keys[j].WBSElement
	})

	computedAt := time.Now().UTC()
	result := make([]*domain.FinancialVariance, 0, len(keys))
	for _, key := range keys {
		t := groups[key]
		result = append(result, buildVariance(key, t.commitment, t.actual, t.currency, t.projectID, computedAt))
	}

	if len(result) > 0 {
		if err := a.variances.Replace(ctx, result); err != nil {
			return nil, fmt.Errorf("Recompute: replace variances: %w", err)
		}
	}

	a.log.Info().
		Int("groups", len(result)).
		Int("commitments", len(commitments)).
		Int("actuals", len(actuals)).
		Msg("Variance recompute finished")

	return result, nil
}

// buildVariance computes one aggregate row. The variance ratio is
// defined as exactly 0 when the commitment total is 0, so a group
// with only actuals never produces a division error.
func buildVariance(key groupKey, commitment, actual decimal.Decimal, currency string, projectID *string, computedAt time.Time) *domain.FinancialVariance {
	variance := actual.Sub(commitment)

	ratio := decimal.Zero
	if !commitment.IsZero() {
		ratio = variance.Div(commitment)
	}

	return &domain.FinancialVariance{
		ProjectID:       projectID,
		ProjectNumber:   key.ProjectNumber,
		WBSElement:      key.WBSElement,
		TotalCommitment: commitment,
		TotalActual:     actual,
		Variance:        variance,
		VarianceRatio:   ratio,
		Status:          classify(commitment, actual),
		Currency:        currency,
		ComputedAt:      computedAt,
	}
}

// classify applies the 0.95/1.05 thresholds. Boundary values count
// as "on": the interval is closed on both ends.
func classify(commitment, actual decimal.Decimal) domain.VarianceStatus {
	lower := commitment.Mul(lowerThreshold)
	upper := commitment.Mul(upperThreshold)

	switch {
	case actual.LessThan(lower):
		return domain.VarianceUnder
	case actual.GreaterThan(upper):
		return domain.VarianceOver
	default:
		return domain.VarianceOn
	}
}

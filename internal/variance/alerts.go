package variance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tracelight/ppm-backend/internal/domain"
)

// Severity bands over |variance ratio|. Larger overruns map to
// higher severities, never lower.
var (
	mediumBand   = decimal.RequireFromString("0.10")
	highBand     = decimal.RequireFromString("0.25")
	criticalBand = decimal.RequireFromString("0.50")
)

// ScanOptions tune alert generation. The zero value alerts on every
// variance whose status is "over".
type ScanOptions struct {
	// MinRatio, when set, raises the bar: only variances whose ratio
	// exceeds it are alerted, even if their status is already "over".
	MinRatio *decimal.Decimal
}

// Scan is a stateless pass over variance records producing alert
// events for budget overruns. Nothing is persisted here; delivering
// the alerts is the caller's concern.
func Scan(variances []*domain.FinancialVariance, opts ScanOptions) []domain.Alert {
	var alerts []domain.Alert

	for _, v := range variances {
		if v.Status != domain.VarianceOver {
			continue
		}
		if opts.MinRatio != nil && !v.VarianceRatio.GreaterThan(*opts.MinRatio) {
			continue
		}

		alerts = append(alerts, domain.Alert{
			ProjectNumber: v.ProjectNumber,
			WBSElement:    v.WBSElement,
			Variance:      v.Variance,
			VarianceRatio: v.VarianceRatio,
			Currency:      v.Currency,
			Severity:      severityFor(v.VarianceRatio),
			Message: fmt.Sprintf("project %s WBS %s is %s %s over commitment (ratio %s)",
				v.ProjectNumber, v.WBSElement, v.Variance.String(), v.Currency, v.VarianceRatio.String()),
		})
	}

	return alerts
}

// severityFor maps |ratio| monotonically onto the severity scale.
func severityFor(ratio decimal.Decimal) domain.AlertSeverity {
	abs := ratio.Abs()
	switch {
	case abs.GreaterThan(criticalBand):
		return domain.SeverityCritical
	case abs.GreaterThan(highBand):
		return domain.SeverityHigh
	case abs.GreaterThan(mediumBand):
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

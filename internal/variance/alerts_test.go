package variance

import (
	"strings"
	"testing"

	"github.com/tracelight/ppm-backend/internal/domain"
)

func overVariance(project, wbs, ratio string) *domain.FinancialVariance {
	return &domain.FinancialVariance{
		ProjectNumber:   project,
		WBSElement:      wbs,
		TotalCommitment: dec("1000"),
		TotalActual:     dec("1000").Add(dec("1000").Mul(dec(ratio))),
		Variance:        dec("1000").Mul(dec(ratio)),
		VarianceRatio:   dec(ratio),
		Status:          domain.VarianceOver,
		Currency:        "EUR",
	}
}

func TestScanOnlyAlertsOverruns(t *testing.T) {
	variances := []*domain.FinancialVariance{
		{ProjectNumber: "4711", WBSElement: "W1", Status: domain.VarianceUnder, VarianceRatio: dec("-0.30")},
		{ProjectNumber: "4711", WBSElement: "W2", Status: domain.VarianceOn, VarianceRatio: dec("0.02")},
		overVariance("4711", "W3", "0.08"),
	}

	alerts := Scan(variances, ScanOptions{})
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].WBSElement != "W3" {
		t.Errorf("alerted group = %s, want W3", alerts[0].WBSElement)
	}
}

func TestScanSeverityBands(t *testing.T) {
	tests := []struct {
		ratio string
		want  domain.AlertSeverity
	}{
		{"0.05", domain.SeverityLow},
		{"0.10", domain.SeverityLow},
		{"0.11", domain.SeverityMedium},
		{"0.25", domain.SeverityMedium},
		{"0.26", domain.SeverityHigh},
		{"0.50", domain.SeverityHigh},
		{"0.51", domain.SeverityCritical},
		{"2.00", domain.SeverityCritical},
	}

	for _, tt := range tests {
		alerts := Scan([]*domain.FinancialVariance{overVariance("4711", "W1", tt.ratio)}, ScanOptions{})
		if len(alerts) != 1 {
			t.Fatalf("ratio %s: expected 1 alert", tt.ratio)
		}
		if alerts[0].Severity != tt.want {
			t.Errorf("ratio %s: severity = %s, want %s", tt.ratio, alerts[0].Severity, tt.want)
		}
	}
}

// Severity never decreases as the ratio grows.
func TestScanSeverityMonotone(t *testing.T) {
	order := map[domain.AlertSeverity]int{
		domain.SeverityLow:      0,
		domain.SeverityMedium:   1,
		domain.SeverityHigh:     2,
		domain.SeverityCritical: 3,
	}

	ratios := []string{"0.01", "0.08", "0.15", "0.30", "0.49", "0.60", "1.20"}
	prev := -1
	for _, r := range ratios {
		alerts := Scan([]*domain.FinancialVariance{overVariance("4711", "W1", r)}, ScanOptions{})
		rank := order[alerts[0].Severity]
		if rank < prev {
			t.Errorf("severity decreased at ratio %s", r)
		}
		prev = rank
	}
}

func TestScanMinRatio(t *testing.T) {
	min := dec("0.10")
	variances := []*domain.FinancialVariance{
		overVariance("4711", "W1", "0.08"),
		overVariance("4711", "W2", "0.10"),
		overVariance("4711", "W3", "0.12"),
	}

	alerts := Scan(variances, ScanOptions{MinRatio: &min})
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert above the bar, got %d", len(alerts))
	}
	if alerts[0].WBSElement != "W3" {
		t.Errorf("alerted group = %s, want W3", alerts[0].WBSElement)
	}
}

func TestScanMessageNamesTheGroup(t *testing.T) {
	alerts := Scan([]*domain.FinancialVariance{overVariance("4711", "WBS-09", "0.08")}, ScanOptions{})
	if len(alerts) != 1 {
		t.Fatal("expected 1 alert")
	}
	msg := alerts[0].Message
	if !strings.Contains(msg, "4711") || !strings.Contains(msg, "WBS-09") {
		t.Errorf("message does not identify the group: %q", msg)
	}
}

func TestScanEmptyInput(t *testing.T) {
	if alerts := Scan(nil, ScanOptions{}); len(alerts) != 0 {
		t.Errorf("expected no alerts for empty input, got %d", len(alerts))
	}
}

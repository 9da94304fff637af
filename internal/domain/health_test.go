package domain_test

import (
	"testing"

	"github.com/doeshing/notegen/internal/domain"
)

func TestHealthReport_Overall(t *testing.T) {
	tests := []struct {
		name         string
		checks       []domain.HealthCheck
		want         domain.HealthStatus
		wantFailures int
	}{
		{name: "empty", want: domain.HealthOK},
		{
			name:   "warn wins over ok",
			checks: []domain.HealthCheck{{Status: domain.HealthOK}, {Status: domain.HealthWarn}},
			want:   domain.HealthWarn,
		},
		{
			name: "error wins",
			checks: []domain.HealthCheck{
				{Status: domain.HealthError}, {Status: domain.HealthWarn}, {Status: domain.HealthError},
			},
			want:         domain.HealthError,
			wantFailures: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := domain.HealthReport{Checks: tt.checks}
			if got := report.Overall(); got != tt.want {
				t.Errorf("Overall() = %s, want %s", got, tt.want)
			}
			if got := report.Failures(); got != tt.wantFailures {
				t.Errorf("Failures() = %d, want %d", got, tt.wantFailures)
			}
		})
	}
}

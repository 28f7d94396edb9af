package cache

import "testing"

func TestCorrelationKey(t *testing.T) {
	tests := []struct {
		name       string
		tenantID   int64
		windowDays int
		want       string
	}{
		{name: "standard window", tenantID: 1, windowDays: 90, want: "correlation:1:90"},
		{name: "distinct windows distinct keys", tenantID: 1, windowDays: 30, want: "correlation:1:30"},
		{name: "distinct tenants distinct keys", tenantID: 22, windowDays: 90, want: "correlation:22:90"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CorrelationKey(tt.tenantID, tt.windowDays)
			if got != tt.want {
				t.Errorf("CorrelationKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

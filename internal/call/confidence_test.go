package call

import "testing"

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{0.95, ConfidenceHigh},
		{0.9, ConfidenceMedium}, // boundary is exclusive
		{0.7, ConfidenceMedium},
		{0.6, ConfidenceLow},
		{0.3, ConfidenceLow},
		{0.0, ConfidenceLow},
	}
	for _, tt := range tests {
		if got := RealtimeThresholds.Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestAuditThresholdsStricter(t *testing.T) {
	// A score the realtime policy calls LOW can still be MEDIUM under audit.
	if got := RealtimeThresholds.Classify(0.55); got != ConfidenceLow {
		t.Errorf("realtime Classify(0.55) = %v", got)
	}
	if got := AuditThresholds.Classify(0.55); got != ConfidenceMedium {
		t.Errorf("audit Classify(0.55) = %v", got)
	}
	if got := AuditThresholds.Classify(0.85); got != ConfidenceHigh {
		t.Errorf("audit Classify(0.85) = %v", got)
	}
}

package call

// ConfidenceLevel buckets a raw recognition score into the three tiers the
// transcript and the post-call summarizer work with.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// ConfidenceThresholds holds the split points for classification. Two policies
// are in use: the realtime transcript path and the stricter post-call audit
// pass use different splits, so the thresholds are values, not constants.
type ConfidenceThresholds struct {
	High   float64
	Medium float64
}

var (
	// RealtimeThresholds classifies live speech-recognition scores.
	RealtimeThresholds = ConfidenceThresholds{High: 0.9, Medium: 0.6}

	// AuditThresholds is the stricter policy applied by the post-call
	// summarizer when re-reading raw observations.
	AuditThresholds = ConfidenceThresholds{High: 0.8, Medium: 0.5}
)

// Classify maps a recognition confidence score to its level.
func (t ConfidenceThresholds) Classify(score float64) ConfidenceLevel {
	switch {
	case score > t.High:
		return ConfidenceHigh
	case score > t.Medium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

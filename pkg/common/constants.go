package common

const (
	// Redis keys for notification resend suppression.
	RedisKeyAlertSent = "price_watch:alert:%s:%d"

	// Provenance tags recorded on price observations.
	ProvenanceVerified    = "verified"
	ProvenanceAIVerified  = "ai-verified"
	ProvenanceAICorrected = "ai-corrected"
)

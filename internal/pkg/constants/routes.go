package constants

// Route constants shared by the router, docs and tests
const (
	APIPrefix         = "/api"
	APIV1Prefix       = "/v1"
	BillingPrefix     = "/billing"
	HealthRoute       = "/healthz"
	MetricsRoute      = "/metrics"
	DocsBasePath      = "/docs/api/"
	StripeWebhookPath = "/webhooks/stripe"
)

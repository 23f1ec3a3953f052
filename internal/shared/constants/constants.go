package constants

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// HTTP Headers
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"

	// Context keys
	ContextKeyMerchantID = "merchant_id"
	ContextKeyRequestID  = "request_id"

	// Database table names
	TableResources       = "resources"
	TableFunnels         = "funnels"
	TableFunnelResources = "funnel_resources"

	// Redis channels and key prefixes
	ChannelFeedback     = "storefront:feedback"
	KeyPrefixAssignBusy = "storefront:assign:busy:"
	KeyPrefixRateLimit  = "storefront:ratelimit:"
)

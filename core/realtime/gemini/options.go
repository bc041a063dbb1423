package gemini

type clientOptions struct {
	apiKey string
}

// ClientOption configures the client during construction.
type ClientOption func(*clientOptions)

// WithAPIKey overrides the GEMINI_API_KEY environment lookup. Pass a
// minted ephemeral token name instead of the key to connect with
// constrained credentials.
func WithAPIKey(apiKey string) ClientOption {
	return func(o *clientOptions) {
		o.apiKey = apiKey
	}
}

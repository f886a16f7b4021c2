package secrets

import "context"

// Provider abstracts the secrets backend holding gateway credentials and
// the webhook signing secret. The AWS implementation is the production one;
// tests substitute in-memory fakes.
type Provider interface {
	// GetSecret retrieves the secret stored under key/path as a key-value
	// map (one map per secret, e.g. {"webhook_secret": "..."}).
	GetSecret(ctx context.Context, key string) (map[string]string, error)

	// ListSecrets returns the names of all secrets under the given prefix.
	ListSecrets(ctx context.Context, prefix string) ([]string, error)
}

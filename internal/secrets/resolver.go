// Package secrets resolves the webhook shared secret used to authenticate
// gateway callbacks.
package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/alcast-trading/rfq-engine/internal/metrics"
	pkgsecrets "github.com/alcast-trading/rfq-engine/pkg/secrets"
)

// WebhookResolver resolves the webhook secret with an explicit override
// taking precedence over AWS Secrets Manager.
//
// Secret naming convention: {env}/rfq-engine/webhook
// Secret JSON format:       {"webhook_secret": "..."}
type WebhookResolver struct {
	logger   *zap.Logger
	env      string
	override string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[string]
}

// NewWebhookResolver constructs the resolver. override comes from
// WEBHOOK_SECRET and, when set, short-circuits AWS entirely (local dev and
// CI). provider may be nil when an override is configured.
func NewWebhookResolver(
	logger *zap.Logger,
	env string,
	override string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[string],
) *WebhookResolver {
	return &WebhookResolver{
		logger:   logger,
		env:      env,
		override: override,
		provider: provider,
		cache:    cache,
	}
}

func (r *WebhookResolver) secretName() string {
	return strings.ToLower(fmt.Sprintf("%s/rfq-engine/webhook", r.env))
}

// Resolve returns the secret, or "" when none is configured anywhere
// (which disables webhook verification).
func (r *WebhookResolver) Resolve(ctx context.Context) (string, error) {
	if r.override != "" {
		return r.override, nil
	}
	if r.provider == nil {
		return "", nil
	}

	name := r.secretName()
	if r.cache != nil {
		if secret, ok := r.cache.Get(name); ok {
			metrics.IncCacheHit("hit")
			return secret, nil
		}
		metrics.IncCacheHit("miss")
	}

	secretMap, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		r.logger.Warn("aws.secret_fetch_failed",
			zap.String("key", name),
			zap.Error(err))
		return "", fmt.Errorf("resolve webhook secret: %w", err)
	}

	secret := secretMap["webhook_secret"]
	if secret == "" {
		return "", fmt.Errorf("secret %q is missing field 'webhook_secret'", name)
	}

	if r.cache != nil {
		r.cache.Put(name, secret)
	}
	return secret, nil
}

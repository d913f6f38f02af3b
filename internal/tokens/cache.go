package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/switchboard/internal/connector"
	goredis "github.com/redis/go-redis/v9"
)

// Cache stores connector access tokens outside the adapters, keyed by
// merchant and connector, so adapters stay stateless and tokens are shared
// across concurrent tasks and processes.
type Cache struct {
	client *goredis.Client
}

// NewCache creates an access-token cache.
func NewCache(client *goredis.Client) *Cache {
	return &Cache{client: client}
}

func key(merchantID, connectorName string) string {
	return fmt.Sprintf("access_token:%s:%s", merchantID, connectorName)
}

type entry struct {
	Token     string        `json:"token"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// Get returns the cached token, or nil when absent or expired.
func (c *Cache) Get(ctx context.Context, merchantID, connectorName string) (*connector.AccessToken, error) {
	raw, err := c.client.Get(ctx, key(merchantID, connectorName)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}
	return &connector.AccessToken{Token: e.Token, ExpiresIn: e.ExpiresIn}, nil
}

// Set stores a token with a TTL slightly shorter than the connector's
// expiry so a cached token is never presented stale.
func (c *Cache) Set(ctx context.Context, merchantID, connectorName string, token *connector.AccessToken) error {
	ttl := token.ExpiresIn - 30*time.Second
	if ttl <= 0 {
		ttl = token.ExpiresIn
	}
	raw, err := json.Marshal(entry{Token: token.Token, ExpiresIn: token.ExpiresIn})
	if err != nil {
		return fmt.Errorf("encode access token: %w", err)
	}
	if err := c.client.Set(ctx, key(merchantID, connectorName), raw, ttl).Err(); err != nil {
		return fmt.Errorf("set access token: %w", err)
	}
	return nil
}

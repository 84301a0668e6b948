package speechkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	ycsdk "github.com/yandex-cloud/go-sdk"
	"google.golang.org/grpc/credentials"
)

const tokenRefreshMargin = 5 * time.Minute

var _ credentials.PerRPCCredentials = (*iamTokenCredentials)(nil)

// iamTokenCredentials attaches a cached IAM token to every call.
type iamTokenCredentials struct {
	issue func(ctx context.Context) (string, time.Time, error)
	now   func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newSDKCredentials(sdk *ycsdk.SDK) *iamTokenCredentials {
	return &iamTokenCredentials{
		issue: func(ctx context.Context) (string, time.Time, error) {
			resp, err := sdk.CreateIAMToken(ctx)
			if err != nil {
				return "", time.Time{}, err
			}

			return resp.GetIamToken(), resp.GetExpiresAt().AsTime(), nil
		},
		now: time.Now,
	}
}

func (c *iamTokenCredentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	token, err := c.current(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]string{"authorization": "Bearer " + token}, nil
}

func (c *iamTokenCredentials) RequireTransportSecurity() bool {
	return true
}

func (c *iamTokenCredentials) current(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expires.Add(-tokenRefreshMargin)) {
		return c.token, nil
	}

	token, expires, err := c.issue(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create IAM token: %w", err)
	}

	c.token = token
	c.expires = expires

	return token, nil
}

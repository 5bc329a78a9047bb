package usecase

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"FeedSummarizer/internal/ports"
)

const cronTokenKey = "cron_token"

// CronToken guards the external cron trigger URL.
type CronToken struct {
	store       ports.KeyValueStore
	configured  string
	rotateEvery time.Duration
	now         func() time.Time
	mu          sync.Mutex
}

// NewCronToken uses configured verbatim when set; otherwise a generated token is
// kept in store and replaced once it is older than rotateEvery (0 never rotates).
func NewCronToken(store ports.KeyValueStore, configured string, rotateEvery time.Duration) *CronToken {
	return &CronToken{store: store, configured: strings.TrimSpace(configured), rotateEvery: rotateEvery, now: time.Now}
}

// Current returns the active token, generating or rotating it as needed.
func (c *CronToken) Current(ctx context.Context) (string, error) {
	if c.configured != "" {
		return c.configured, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	token, updatedAt, found, err := c.store.GetSetting(ctx, cronTokenKey)
	if err != nil {
		return "", fmt.Errorf("load cron token: %w", err)
	}
	if found && token != "" && (c.rotateEvery <= 0 || c.now().Sub(updatedAt) < c.rotateEvery) {
		return token, nil
	}

	token = strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := c.store.SetSetting(ctx, cronTokenKey, token); err != nil {
		return "", fmt.Errorf("store cron token: %w", err)
	}
	return token, nil
}

// Valid compares candidate against the active token in constant time.
func (c *CronToken) Valid(ctx context.Context, candidate string) (bool, error) {
	if candidate == "" {
		return false, nil
	}
	token, err := c.Current(ctx)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1, nil
}

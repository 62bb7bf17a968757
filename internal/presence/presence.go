package presence

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/CDeX-Labs/CDeX-Duel-Service/internal/redis"
	"github.com/rs/zerolog"
)

const (
	presenceKeyFmt = "presence:user:%s"
	presenceTTL    = 5 * time.Minute
)

// Manager tracks which users currently hold a live duel connection, keyed by
// service instance so multiple instances can coexist in Redis.
type Manager struct {
	redis      *redisclient.Client
	instanceID string
	logger     zerolog.Logger
}

func NewManager(redis *redisclient.Client, instanceID string, logger zerolog.Logger) *Manager {
	return &Manager{
		redis:      redis,
		instanceID: instanceID,
		logger:     logger.With().Str("component", "presence").Logger(),
	}
}

func (m *Manager) SetOnline(ctx context.Context, userID string) error {
	key := fmt.Sprintf(presenceKeyFmt, userID)
	err := m.redis.HSet(ctx, key, m.instanceID, time.Now().Unix())
	if err != nil {
		return err
	}
	return m.redis.Expire(ctx, key, presenceTTL)
}

func (m *Manager) SetOffline(ctx context.Context, userID string) error {
	key := fmt.Sprintf(presenceKeyFmt, userID)
	return m.redis.HDel(ctx, key, m.instanceID)
}

func (m *Manager) IsOnline(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf(presenceKeyFmt, userID)
	count, err := m.redis.HLen(ctx, key)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

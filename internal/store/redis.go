package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	redisclient "github.com/CDeX-Labs/CDeX-Duel-Service/internal/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	profileKeyFmt = "profile:user:%s"
	problemKeyFmt = "problem:%s"
	problemSetFmt = "problems:%s:%s" // difficulty, language
	duelKeyFmt    = "duel:%s"
	eventsKeyFmt  = "events:user:%s"
	pointsKeyFmt  = "gamification:user:%s"
	duelRecordTTL = 30 * 24 * time.Hour
)

// RedisStore backs every collaborator interface with Redis.
type RedisStore struct {
	redis  *redisclient.Client
	logger zerolog.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redis *redisclient.Client, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		redis:  redis,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

func (s *RedisStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	fields, err := s.redis.HGetAll(ctx, fmt.Sprintf(profileKeyFmt, userID))
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	profile := &Profile{
		Nickname: fields["nickname"],
		Avatar:   fields["avatar"],
	}
	if profile.Nickname == "" {
		profile.Nickname = "Anonymous"
	}
	return profile, nil
}

func (s *RedisStore) RandomProblem(ctx context.Context, difficulty, language string) (*Problem, error) {
	setKey := fmt.Sprintf(problemSetFmt, difficulty, language)

	problemID, err := s.redis.SRandMember(ctx, setKey)
	if err == goredis.Nil {
		return nil, ErrNoProblem
	}
	if err != nil {
		return nil, fmt.Errorf("pick problem: %w", err)
	}
	if problemID == "" {
		return nil, ErrNoProblem
	}

	raw, err := s.redis.Get(ctx, fmt.Sprintf(problemKeyFmt, problemID))
	if err == goredis.Nil {
		s.logger.Warn().Str("problemId", problemID).Msg("Problem id in index but record missing")
		return nil, ErrNoProblem
	}
	if err != nil {
		return nil, fmt.Errorf("load problem: %w", err)
	}

	var problem Problem
	if err := json.Unmarshal([]byte(raw), &problem); err != nil {
		return nil, fmt.Errorf("decode problem %s: %w", problemID, err)
	}
	return &problem, nil
}

func (s *RedisStore) SaveDuel(ctx context.Context, record *DuelRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode duel record: %w", err)
	}
	return s.redis.Set(ctx, fmt.Sprintf(duelKeyFmt, record.ID), data, duelRecordTTL)
}

func (s *RedisStore) RecordEvent(ctx context.Context, userID string, event *DuelEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return s.redis.RPush(ctx, fmt.Sprintf(eventsKeyFmt, userID), data)
}

func (s *RedisStore) AwardXP(ctx context.Context, userID string, xp int) (int64, int, error) {
	key := fmt.Sprintf(pointsKeyFmt, userID)

	points, err := s.redis.HIncrBy(ctx, key, "points", int64(xp))
	if err != nil {
		return 0, 0, fmt.Errorf("award xp: %w", err)
	}

	level := LevelForPoints(points)
	if err := s.redis.HSet(ctx, key, "level", level); err != nil {
		return points, level, fmt.Errorf("update level: %w", err)
	}
	return points, level, nil
}

// LevelForPoints recomputes a user's level from their running XP total.
func LevelForPoints(points int64) int {
	if points <= 0 {
		return 0
	}
	return int(math.Floor(math.Sqrt(float64(points)) / 10))
}

package attendance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tahfeez/internal/model"
)

// RedisSource is a read-through Redis cache in front of another Source. It
// is shared by all view sessions; each session still keeps its own Cache.
type RedisSource struct {
	client *redis.Client
	next   Source
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

// NewRedisSource wraps next. A non-positive ttl defaults to five minutes.
func NewRedisSource(client *redis.Client, next Source, ttl time.Duration, log *zap.Logger) *RedisSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisSource{client: client, next: next, ttl: ttl, prefix: "attendance:lesson:", log: log}
}

func (s *RedisSource) key(lessonID model.ID) string { return s.prefix + string(lessonID) }

// FetchLessonAttendance serves from Redis when possible. Redis errors fall
// through to the wrapped source; only its errors are returned.
func (s *RedisSource) FetchLessonAttendance(ctx context.Context, lessonID model.ID) (RawResponse, error) {
	raw, err := s.client.Get(ctx, s.key(lessonID)).Bytes()
	switch {
	case err == nil:
		var resp RawResponse
		if jerr := json.Unmarshal(raw, &resp); jerr == nil {
			return resp, nil
		}
		s.log.Warn("discarding corrupt cached roster", zap.String("lesson_id", lessonID.String()))
	case !errors.Is(err, redis.Nil):
		s.log.Warn("redis roster read failed", zap.String("lesson_id", lessonID.String()), zap.Error(err))
	}
	return s.Warm(ctx, lessonID)
}

// Warm fetches a lesson from the wrapped source and stores it in Redis.
func (s *RedisSource) Warm(ctx context.Context, lessonID model.ID) (RawResponse, error) {
	resp, err := s.next.FetchLessonAttendance(ctx, lessonID)
	if err != nil {
		return RawResponse{}, err
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return resp, nil
	}
	if err := s.client.Set(ctx, s.key(lessonID), payload, s.ttl).Err(); err != nil {
		s.log.Warn("redis roster write failed", zap.String("lesson_id", lessonID.String()), zap.Error(err))
	}
	return resp, nil
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/config"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/utils"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

type RedisSession struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisSession(redisClient *redis.Client, cfg *config.Config) *RedisSession {
	return &RedisSession{redis: redisClient, cfg: cfg}
}

func sessionKey(key string) string {
	return "session:" + key
}

func (r *RedisSession) GetSession(ctx context.Context, key string) (model.Session, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetSession start", slog.String("rqID", rqID))

	res, err := r.redis.Get(ctx, sessionKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", sessionKey(key)))
		return model.Session{}, err
	}

	session := model.Session{}
	err = json.Unmarshal([]byte(res), &session)
	if err != nil {
		slog.Error(
			"can't unmarshall session in GetSession",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.Session{}, errors.New("can't unmarshall session")
	}

	slog.Debug("GetSession finished", slog.String("rqID", rqID))

	return session, nil
}

func (r *RedisSession) SetSession(ctx context.Context, key string, session model.Session) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetSession start", slog.String("rqID", rqID))

	sessionJson, err := json.Marshal(session)
	if err != nil {
		slog.Error(
			"can't marshall session in SetSession",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.Any("session", session),
		)
		return errors.New("can't marshall session")
	}

	err = r.redis.Set(ctx, sessionKey(key), sessionJson, r.cfg.SessionExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", sessionKey(key)))
		return err
	}

	slog.Debug("SetSession finished", slog.String("rqID", rqID))

	return nil
}

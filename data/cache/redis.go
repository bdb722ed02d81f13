package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/config"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model/quoteModel"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/utils"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("not found in cache")

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func quoteKey(symbol string) string {
	return "quote:" + symbol
}

func (r *RedisCache) SetQuotes(ctx context.Context, quotes []quoteModel.Quote) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetQuotes start", slog.String("rqID", rqID))

	pipe := r.redis.Pipeline()
	for _, quote := range quotes {
		quoteJson, err := json.Marshal(quote)
		if err != nil {
			slog.Error(
				"can't marshall quote in SetQuotes",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.Any("quote", quote),
			)
			return errors.New("can't marshall quote")
		}

		_, err = pipe.Set(ctx, quoteKey(quote.Symbol), quoteJson, r.cfg.Cache.QuotesExpiration).Result()
		if err != nil {
			slog.Error(
				"failed on pipe.Set",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.Any("quote", quote),
			)
			return err
		}
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("failed on pipe.Exec", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetQuotes completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisCache) GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetQuote start", slog.String("rqID", rqID))

	res, err := r.redis.Get(ctx, quoteKey(symbol)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return quoteModel.Quote{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", quoteKey(symbol)))
		return quoteModel.Quote{}, err
	}

	quote := quoteModel.Quote{}
	err = json.Unmarshal([]byte(res), &quote)
	if err != nil {
		slog.Error(
			"can't unmarshall quote in GetQuote",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return quoteModel.Quote{}, errors.New("can't unmarshall quote")
	}

	slog.Debug("GetQuote finished", slog.String("rqID", rqID))

	return quote, nil
}

// GetQuotes returns whatever subset of the requested symbols is cached.
// Missing symbols are simply absent from the result, not an error.
func (r *RedisCache) GetQuotes(ctx context.Context, symbols []string) (map[string]quoteModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetQuotes start", slog.String("rqID", rqID))

	keys := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		keys = append(keys, quoteKey(symbol))
	}

	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Error("failed on redis.MGet", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	quotes := make(map[string]quoteModel.Quote, len(symbols))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		quote := quoteModel.Quote{}
		if err = json.Unmarshal([]byte(raw), &quote); err != nil {
			slog.Error(
				"can't unmarshall quote in GetQuotes",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.String("resultFromRedis", raw),
			)
			continue
		}
		quotes[symbols[i]] = quote
	}

	slog.Debug("GetQuotes finished", slog.String("rqID", rqID))

	return quotes, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/acmehealth/claimsight/internal/cache"
	"github.com/acmehealth/claimsight/internal/refdata/domain"
)

const (
	memoryTTL   = 10 * time.Minute
	redisTTL    = time.Hour
	redisPrefix = "refdata:"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Redis *redis.Client `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	redis  *redis.Client
	memory cache.Cache[string, domain.Item]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("refdata.service"),
		genID:  p.GenID,
		redis:  p.Redis,
		memory: cache.NewTTLCache[string, domain.Item](),
	}
}

func cacheKey(kind domain.Kind, code string) string {
	return fmt.Sprintf("%s%s:%s", redisPrefix, kind, strings.ToLower(strings.TrimSpace(code)))
}

func (s *Service) Resolve(ctx context.Context, kind domain.Kind, code string) (domain.Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Unknown(kind, code), nil
	}
	key := cacheKey(kind, code)

	if item, ok := s.memory.Get(key); ok {
		return item, nil
	}
	if item, ok := s.fromRedis(ctx, key); ok {
		s.memory.Set(key, item, memoryTTL)
		return item, nil
	}

	var row domain.ReferenceItem
	err := s.db.WithContext(ctx).
		Where("kind = ? AND code = ?", kind, code).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Missing codes degrade to the placeholder; cached briefly so
		// a flood of unknown codes does not hammer the table.
		item := domain.Unknown(kind, code)
		s.memory.Set(key, item, memoryTTL)
		return item, nil
	}
	if err != nil {
		return domain.Unknown(kind, code), err
	}

	item := domain.Item{Kind: row.Kind, Code: row.Code, Name: row.Name}
	s.memory.Set(key, item, memoryTTL)
	s.toRedis(ctx, key, item)
	return item, nil
}

func (s *Service) Upsert(ctx context.Context, item domain.Item) error {
	item.Code = strings.TrimSpace(item.Code)
	if item.Code == "" || item.Kind == "" {
		return errors.New("refdata: kind and code are required")
	}

	row := domain.ReferenceItem{
		ID:   s.genID.Generate(),
		Kind: item.Kind,
		Code: item.Code,
		Name: item.Name,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return err
	}

	key := cacheKey(item.Kind, item.Code)
	s.memory.Delete(key)
	if s.redis != nil {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			s.log.Warn("redis invalidate failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) Invalidate(ctx context.Context) error {
	s.memory.Clear()
	if s.redis == nil {
		return nil
	}

	iter := s.redis.Scan(ctx, 0, redisPrefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.redis.Del(ctx, keys...).Err()
}

func (s *Service) fromRedis(ctx context.Context, key string) (domain.Item, bool) {
	if s.redis == nil {
		return domain.Item{}, false
	}
	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return domain.Item{}, false
	}
	var item domain.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.Item{}, false
	}
	return item, true
}

func (s *Service) toRedis(ctx context.Context, key string, item domain.Item) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, raw, redisTTL).Err(); err != nil {
		s.log.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
}

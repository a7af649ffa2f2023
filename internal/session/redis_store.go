package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"beanstore/internal/domain"
)

// RedisStore keeps each session as a JSON value under session:<token> with a
// Redis TTL matching its expiry, so no purge is needed. The tokens of each
// customer are indexed in the set customer_sessions:<id>.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func redisKey(token string) string { return "session:" + token }

func customerKey(customerID string) string { return "customer_sessions:" + customerID }

func (s *RedisStore) Create(ctx context.Context, sess domain.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisKey(sess.Token), b, ttl)
		p.SAdd(ctx, customerKey(sess.CustomerID), sess.Token)
		p.Expire(ctx, customerKey(sess.CustomerID), ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, token string) (domain.Session, error) {
	b, err := s.rdb.Get(ctx, redisKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrNoSession
	}
	if err != nil {
		return domain.Session{}, err
	}
	var sess domain.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// Touch rewrites last_seen and keeps the remaining TTL.
func (s *RedisStore) Touch(ctx context.Context, token string, now time.Time) error {
	sess, err := s.Get(ctx, token)
	if errors.Is(err, domain.ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	sess.LastSeen = now
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	err = s.rdb.SetArgs(ctx, redisKey(token), b, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	sess, err := s.Get(ctx, token)
	if errors.Is(err, domain.ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, redisKey(token))
		p.SRem(ctx, customerKey(sess.CustomerID), token)
		return nil
	})
	return err
}

// DeleteForCustomer ends every indexed session of the customer except the
// token except. Index entries whose session already expired are dropped too.
func (s *RedisStore) DeleteForCustomer(ctx context.Context, customerID, except string) (int64, error) {
	tokens, err := s.rdb.SMembers(ctx, customerKey(customerID)).Result()
	if err != nil {
		return 0, err
	}
	var dels []*redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, t := range tokens {
			if t == except {
				continue
			}
			dels = append(dels, p.Del(ctx, redisKey(t)))
			p.SRem(ctx, customerKey(customerID), t)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	var n int64
	for _, d := range dels {
		n += d.Val()
	}
	return n, nil
}

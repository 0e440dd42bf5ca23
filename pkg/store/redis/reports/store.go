package reports

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/de-tools/pivot-reports/pkg/models/store"
	storereports "github.com/de-tools/pivot-reports/pkg/store/reports"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "pivot:report:"
	indexKey  = "pivot:reports"

	maxUpdateAttempts = 5
)

// redisStore keeps one hash per request and a sorted set of request ids
// scored by creation time.
type redisStore struct {
	client *redis.Client
}

func NewStore(client *redis.Client) (storereports.Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &redisStore{client: client}, nil
}

// Connect initializes a Redis client from URL or host:port input.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// Open connects to redisURL and verifies the connection.
func Open(ctx context.Context, redisURL string) (storereports.Store, error) {
	client, err := Connect(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewStore(client)
}

func key(requestID string) string {
	return keyPrefix + requestID
}

func (s *redisStore) Create(ctx context.Context, r *store.ReportRequest) error {
	k := key(r.RequestID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, k).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return storereports.ErrAlreadyExists
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, k, encode(r))
			p.ZAdd(ctx, indexKey, redis.Z{Score: score(r.CreatedAt), Member: r.RequestID})
			return nil
		})
		return err
	}, k)

	if errors.Is(err, redis.TxFailedErr) {
		return storereports.ErrAlreadyExists
	}
	if err != nil && !errors.Is(err, storereports.ErrAlreadyExists) {
		return fmt.Errorf("create report request: %w", err)
	}
	return err
}

func (s *redisStore) Fetch(ctx context.Context, requestID string) (*store.ReportRequest, error) {
	fields, err := s.client.HGetAll(ctx, key(requestID)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch report request: %w", err)
	}
	if len(fields) == 0 {
		return nil, storereports.ErrNotFound
	}
	return decode(requestID, fields)
}

// Update retries optimistic transactions when a concurrent writer touched the hash.
func (s *redisStore) Update(
	ctx context.Context,
	requestID string,
	patch store.ReportPatch,
) (*store.ReportRequest, error) {
	k := key(requestID)
	var updated *store.ReportRequest

	apply := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, k).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return storereports.ErrNotFound
		}

		r, err := decode(requestID, fields)
		if err != nil {
			return err
		}
		patch.Apply(r)

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, k, encode(r))
			return nil
		})
		if err == nil {
			updated = r
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, apply, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, storereports.ErrNotFound) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("update report request: %w", err)
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update report request %s: too many concurrent writers", requestID)
}

func (s *redisStore) List(ctx context.Context, owner string) ([]*store.ReportRequest, error) {
	ids, err := s.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list report requests: %w", err)
	}

	res := make([]*store.ReportRequest, 0, len(ids))
	for _, id := range ids {
		r, err := s.Fetch(ctx, id)
		if errors.Is(err, storereports.ErrNotFound) {
			// hash expired or removed under us
			continue
		}
		if err != nil {
			return nil, err
		}
		if owner != "" && r.Owner != owner {
			continue
		}
		res = append(res, r)
	}
	return res, nil
}

func (s *redisStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixNano(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired report requests: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids))
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, key(id))
		members = append(members, id)
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		deleted = p.Del(ctx, keys...)
		p.ZRem(ctx, indexKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired report requests: %w", err)
	}
	return int(deleted.Val()), nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func score(t time.Time) float64 {
	return float64(t.UnixNano())
}

func encode(r *store.ReportRequest) map[string]any {
	fields := map[string]any{
		"owner":        r.Owner,
		"payload":      string(r.Payload),
		"ready":        strconv.FormatBool(r.Ready),
		"created_at":   r.CreatedAt.UTC().Format(time.RFC3339Nano),
		"csv_path":     "",
		"completed_at": "",
	}
	if r.CSVPath != nil {
		fields["csv_path"] = *r.CSVPath
	}
	if r.CompletedAt != nil {
		fields["completed_at"] = r.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

func decode(requestID string, fields map[string]string) (*store.ReportRequest, error) {
	r := &store.ReportRequest{
		RequestID: requestID,
		Owner:     fields["owner"],
		Payload:   []byte(fields["payload"]),
		Ready:     fields["ready"] == "true",
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("decode created_at of %s: %w", requestID, err)
	}
	r.CreatedAt = createdAt

	if path := fields["csv_path"]; path != "" {
		r.CSVPath = &path
	}
	if raw := fields["completed_at"]; raw != "" {
		completedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode completed_at of %s: %w", requestID, err)
		}
		r.CompletedAt = &completedAt
	}
	return r, nil
}

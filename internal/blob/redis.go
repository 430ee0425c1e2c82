package blob

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/google/uuid"

	"twinsale/internal/platform/redis"
	"twinsale/pkg/platform/sentinel"
)

const keyPrefix = "blob:"

// Redis stores blobs in Redis. Deployments that outlive a process restart use
// this backend; blobs arrive already encrypted when wrapped in Crypted.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("put blob: empty payload")
	}
	ref := uuid.NewString()
	if err := r.client.Set(ctx, keyPrefix+ref, data, 0).Err(); err != nil {
		return "", fmt.Errorf("put blob: %w", err)
	}
	return ref, nil
}

func (r *Redis) Get(ctx context.Context, ref string) ([]byte, error) {
	data, err := r.client.Get(ctx, keyPrefix+ref).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("get blob %s: %w", ref, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get blob %s: %w", ref, err)
	}
	return data, nil
}

// Delete removes a blob. Unknown refs succeed so retention retries stay
// idempotent.
func (r *Redis) Delete(ctx context.Context, ref string) error {
	if err := r.client.Del(ctx, keyPrefix+ref).Err(); err != nil {
		return fmt.Errorf("delete blob %s: %w", ref, err)
	}
	return nil
}

//go:build integration

package credential_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mailblast/mailblast/internal/credential"
	"github.com/mailblast/mailblast/internal/database"
	"github.com/mailblast/mailblast/internal/model"
)

const testRedisURL = "redis://localhost:6379/0"

func newTestRedis(t *testing.T) *database.Redis {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = testRedisURL
	}
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	require.NoError(t, client.Ping(context.Background()).Err(), "failed to connect to Redis")

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return database.WrapRedis(client)
}

func TestRedis_GetSetClear(t *testing.T) {
	ctx := context.Background()
	s := credential.NewRedis(newTestRedis(t), time.Minute)

	_, err := s.Get(ctx, "s1", model.ProviderGoogle)
	require.ErrorIs(t, err, model.ErrUnauthenticated)

	require.NoError(t, s.Set(ctx, "s1", googleCred("tok")))
	got, err := s.Get(ctx, "s1", model.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "tok", got.AccessToken)
	require.Equal(t, "refresh", got.RefreshToken)

	_, err = s.Get(ctx, "s2", model.ProviderGoogle)
	require.ErrorIs(t, err, model.ErrUnauthenticated)

	require.ErrorIs(t, s.Set(ctx, "s1", googleCred("")), credential.ErrIncomplete)

	require.NoError(t, s.Clear(ctx, "s1", model.ProviderGoogle))
	_, err = s.Get(ctx, "s1", model.ProviderGoogle)
	require.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestRedis_Flow(t *testing.T) {
	ctx := context.Background()
	s := credential.NewRedis(newTestRedis(t), time.Minute)

	f, err := s.GetFlow(ctx, "s1", model.ProviderGoogle)
	require.NoError(t, err)
	require.Nil(t, f)

	require.NoError(t, s.SetFlow(ctx, "s1", model.ProviderGoogle, &credential.Flow{State: "st"}))
	f, err = s.GetFlow(ctx, "s1", model.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "st", f.State)

	require.NoError(t, s.ClearFlow(ctx, "s1", model.ProviderGoogle))
	f, err = s.GetFlow(ctx, "s1", model.ProviderGoogle)
	require.NoError(t, err)
	require.Nil(t, f)
}

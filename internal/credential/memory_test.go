package credential_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mailblast/mailblast/internal/credential"
	"github.com/mailblast/mailblast/internal/model"
)

var (
	_ credential.Store = (*credential.Memory)(nil)
	_ credential.Store = (*credential.Redis)(nil)

	_ credential.FlowStore = (*credential.Memory)(nil)
	_ credential.FlowStore = (*credential.Redis)(nil)
)

func googleCred(token string) *model.Credential {
	return &model.Credential{
		Provider:     model.ProviderGoogle,
		AccessToken:  token,
		RefreshToken: "refresh",
		TokenURI:     "https://oauth2.googleapis.com/token",
		ClientID:     "client",
		Scopes:       []string{"https://www.googleapis.com/auth/gmail.send"},
		ObtainedAt:   time.Now(),
	}
}

func TestMemory_GetSetClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := credential.NewMemory(time.Hour)

	_, err := s.Get(ctx, "s1", model.ProviderGoogle)
	require.ErrorIs(t, err, model.ErrUnauthenticated)

	require.NoError(t, s.Set(ctx, "s1", googleCred("tok")))

	got, err := s.Get(ctx, "s1", model.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "tok", got.AccessToken)

	_, err = s.Get(ctx, "s1", model.ProviderMicrosoft)
	require.ErrorIs(t, err, model.ErrUnauthenticated)

	require.NoError(t, s.Clear(ctx, "s1", model.ProviderGoogle))
	_, err = s.Get(ctx, "s1", model.ProviderGoogle)
	require.ErrorIs(t, err, model.ErrUnauthenticated)

	require.NoError(t, s.Clear(ctx, "s1", model.ProviderGoogle))
}

func TestMemory_SessionIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := credential.NewMemory(time.Hour)

	require.NoError(t, s.Set(ctx, "alice", googleCred("alice-token")))
	require.NoError(t, s.Set(ctx, "bob", googleCred("bob-token")))

	got, err := s.Get(ctx, "alice", model.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "alice-token", got.AccessToken)

	require.NoError(t, s.Clear(ctx, "alice", model.ProviderGoogle))
	_, err = s.Get(ctx, "alice", model.ProviderGoogle)
	require.ErrorIs(t, err, model.ErrUnauthenticated)

	got, err = s.Get(ctx, "bob", model.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "bob-token", got.AccessToken)
}

func TestMemory_RejectsIncomplete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := credential.NewMemory(time.Hour)

	require.NoError(t, s.Set(ctx, "s1", googleCred("good")))

	partial := googleCred("")
	require.ErrorIs(t, s.Set(ctx, "s1", partial), credential.ErrIncomplete)

	noClient := googleCred("tok")
	noClient.ClientID = ""
	require.ErrorIs(t, s.Set(ctx, "s1", noClient), credential.ErrIncomplete)

	got, err := s.Get(ctx, "s1", model.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "good", got.AccessToken)

	require.ErrorIs(t, s.Set(ctx, "", googleCred("tok")), credential.ErrNoSession)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := credential.NewMemory(time.Hour)

	in := googleCred("tok")
	require.NoError(t, s.Set(ctx, "s1", in))
	in.AccessToken = "mutated"
	in.Scopes[0] = "mutated"

	got, err := s.Get(ctx, "s1", model.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "tok", got.AccessToken)
	require.Equal(t, "https://www.googleapis.com/auth/gmail.send", got.Scopes[0])

	got.AccessToken = "mutated-again"
	again, err := s.Get(ctx, "s1", model.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "tok", again.AccessToken)
}

func TestMemory_Flow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := credential.NewMemory(time.Hour)

	f, err := s.GetFlow(ctx, "s1", model.ProviderMicrosoft)
	require.NoError(t, err)
	require.Nil(t, f)
	require.False(t, f.Pending())

	require.NoError(t, s.SetFlow(ctx, "s1", model.ProviderMicrosoft, &credential.Flow{
		State:        "st",
		ConsumedCode: credential.CodeDigest("abc"),
	}))

	f, err = s.GetFlow(ctx, "s1", model.ProviderMicrosoft)
	require.NoError(t, err)
	require.True(t, f.Pending())
	require.True(t, f.Consumed("abc"))
	require.False(t, f.Consumed("abd"))

	other, err := s.GetFlow(ctx, "s2", model.ProviderMicrosoft)
	require.NoError(t, err)
	require.Nil(t, other)

	require.NoError(t, s.ClearFlow(ctx, "s1", model.ProviderMicrosoft))
	f, err = s.GetFlow(ctx, "s1", model.ProviderMicrosoft)
	require.NoError(t, err)
	require.Nil(t, f)

	_, err = s.GetFlow(ctx, "", model.ProviderMicrosoft)
	require.ErrorIs(t, err, credential.ErrNoSession)
}

func TestMemory_ExpiresWithSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Now()
	clock := func() time.Time { return now }
	s := credential.NewMemory(time.Hour, credential.WithMemoryClock(clock))

	require.NoError(t, s.Set(ctx, "s1", googleCred("tok")))
	require.NoError(t, s.SetFlow(ctx, "s1", model.ProviderGoogle, &credential.Flow{State: "st"}))

	now = now.Add(59 * time.Minute)
	_, err := s.Get(ctx, "s1", model.ProviderGoogle)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, "s1", model.ProviderGoogle)
	require.ErrorIs(t, err, model.ErrUnauthenticated)
	f, err := s.GetFlow(ctx, "s1", model.ProviderGoogle)
	require.NoError(t, err)
	require.Nil(t, f)
	require.Zero(t, s.Len())
}

func TestMemory_Sweep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Now()
	s := credential.NewMemory(time.Hour, credential.WithMemoryClock(func() time.Time { return now }))

	require.NoError(t, s.Set(ctx, "old", googleCred("tok")))
	require.NoError(t, s.SetFlow(ctx, "old", model.ProviderGoogle, &credential.Flow{State: "st"}))
	now = now.Add(30 * time.Minute)
	require.NoError(t, s.Set(ctx, "new", googleCred("tok")))
	require.Equal(t, 3, s.Len())

	now = now.Add(45 * time.Minute)
	s.Sweep()
	require.Equal(t, 1, s.Len())

	_, err := s.Get(ctx, "new", model.ProviderGoogle)
	require.NoError(t, err)
}

func TestMemory_JanitorSweeps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := credential.NewMemory(10*time.Millisecond, credential.WithCleanupInterval(5*time.Millisecond))
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Set(ctx, "s1", googleCred("tok")))
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close())
}

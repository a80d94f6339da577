package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/stretchr/testify/require"
)

func TestGuardWrapsUnavailable(t *testing.T) {
	g := New(50*time.Millisecond, NewBreaker(3, time.Second))

	err := g.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, model.ErrStoreUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuardPassesDomainErrors(t *testing.T) {
	g := New(time.Second, NewBreaker(1, time.Second))

	for i := 0; i < 3; i++ {
		err := g.Do(context.Background(), func(context.Context) error { return model.ErrInvalidState })
		require.ErrorIs(t, err, model.ErrInvalidState)
		require.NotErrorIs(t, err, model.ErrStoreUnavailable)
	}
	require.False(t, g.br.Open())
}

func TestGuardOpensAfterThreshold(t *testing.T) {
	br := NewBreaker(2, time.Minute)
	g := New(time.Second, br)
	fail := func(context.Context) error { return context.DeadlineExceeded }

	require.Error(t, g.Do(context.Background(), fail))
	require.Error(t, g.Do(context.Background(), fail))

	called := false
	err := g.Do(context.Background(), func(context.Context) error { called = true; return nil })
	require.ErrorIs(t, err, model.ErrStoreUnavailable)
	require.False(t, called)
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Unix(1000, 0)
	br := NewBreaker(1, time.Second)
	br.now = func() time.Time { return now }

	require.True(t, br.TryAcquire())
	br.OnFailure()
	require.True(t, br.Open())
	require.False(t, br.TryAcquire())

	now = now.Add(2 * time.Second)
	require.True(t, br.TryAcquire(), "probe after open window")
	require.False(t, br.TryAcquire(), "only one probe in flight")

	br.OnSuccess()
	require.False(t, br.Open())
	require.True(t, br.TryAcquire())
}

func TestIsUnavailable(t *testing.T) {
	require.False(t, IsUnavailable(nil))
	require.False(t, IsUnavailable(errors.New("duplicate key")))
	require.True(t, IsUnavailable(context.DeadlineExceeded))
}

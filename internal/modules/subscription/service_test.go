package subscription

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ordbokapi/notify/internal/pkg/cipher"
	"github.com/ordbokapi/notify/internal/pkg/redis"
	tpl "github.com/ordbokapi/notify/internal/pkg/template"
)

const (
	testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testIVHex  = "0f0e0d0c0b0a09080706050403020100"
)

func newTestService(t *testing.T) (*Service, *redis.Memory) {
	t.Helper()
	c, err := cipher.New(testKeyHex, testIVHex, "s:")
	require.NoError(t, err)
	mem := redis.NewMemory()
	svc := NewService(mem, c, NewLinks("https://blog.example.org", "https://api.example.org"), 0, zap.NewNop())
	return svc, mem
}

// drains one job off the queue and returns it.
func dequeueOne(t *testing.T, svc *Service) *Job {
	t.Helper()
	job, err := svc.DequeueEmail(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

// pulls the verification token out of the queued verification email.
func tokenFromJob(t *testing.T, job *Job) string {
	t.Helper()
	u, err := url.Parse(job.Params["verificationUrl"])
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Subscribe(ctx, "ola@example.org"))

	verification := dequeueOne(t, svc)
	assert.Equal(t, tpl.Verification, verification.Template)
	assert.Equal(t, []string{"ola@example.org"}, verification.Addresses)
	assert.False(t, verification.NeedsUnsubscribeLink)

	subscribed, err := svc.IsSubscribed(ctx, "ola@example.org")
	require.NoError(t, err)
	assert.False(t, subscribed, "pending subscriber is not yet subscribed")

	ok, err := svc.Verify(ctx, tokenFromJob(t, verification))
	require.NoError(t, err)
	assert.True(t, ok)

	welcome := dequeueOne(t, svc)
	assert.Equal(t, tpl.Welcome, welcome.Template)
	assert.True(t, welcome.NeedsUnsubscribeLink)

	subscribed, err = svc.IsSubscribed(ctx, "ola@example.org")
	require.NoError(t, err)
	assert.True(t, subscribed)

	subs, err := svc.Subscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "ola@example.org", subs[0].Email)
	assert.NotEmpty(t, subs[0].UnsubscribeToken)

	ok, err = svc.Unsubscribe(ctx, subs[0].UnsubscribeToken)
	require.NoError(t, err)
	assert.True(t, ok)

	subscribed, err = svc.IsSubscribed(ctx, "ola@example.org")
	require.NoError(t, err)
	assert.False(t, subscribed)

	ok, err = svc.Unsubscribe(ctx, subs[0].UnsubscribeToken)
	require.NoError(t, err)
	assert.False(t, ok, "token is dead after the first unsubscribe")
}

func TestSubscribeIsIdempotentForVerifiedSubscribers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Subscribe(ctx, "kari@example.org"))
	ok, err := svc.Verify(ctx, tokenFromJob(t, dequeueOne(t, svc)))
	require.NoError(t, err)
	require.True(t, ok)
	dequeueOne(t, svc) // welcome

	require.NoError(t, svc.Subscribe(ctx, "kari@example.org"))

	job, err := svc.DequeueEmail(ctx)
	require.NoError(t, err)
	assert.Nil(t, job, "no verification email for an existing subscriber")
}

func TestVerifyUnknownToken(t *testing.T) {
	svc, _ := newTestService(t)

	ok, err := svc.Verify(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	mem.SetClock(func() time.Time { return now })

	require.NoError(t, svc.Subscribe(ctx, "ola@example.org"))
	token := tokenFromJob(t, dequeueOne(t, svc))

	now = now.Add(DefaultPendingTTL + time.Second)

	ok, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyTokenIsSingleUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Subscribe(ctx, "ola@example.org"))
	token := tokenFromJob(t, dequeueOne(t, svc))

	ok, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueueIsFIFO(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.QueueEmail(ctx, Job{Template: tpl.NewPost, Subject: "first", Addresses: []string{}}))
	require.NoError(t, svc.QueueEmail(ctx, Job{Template: tpl.NewPost, Subject: "second", Addresses: []string{}}))

	assert.Equal(t, "first", dequeueOne(t, svc).Subject)
	assert.Equal(t, "second", dequeueOne(t, svc).Subject)

	job, err := svc.DequeueEmail(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestBroadcastSnapshotsSubscribersAtEnqueue(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Subscribe(ctx, "ola@example.org"))
	ok, err := svc.Verify(ctx, tokenFromJob(t, dequeueOne(t, svc)))
	require.NoError(t, err)
	require.True(t, ok)
	dequeueOne(t, svc) // welcome

	require.NoError(t, svc.QueueNewPostEmail(ctx, "Ny post", "https://blog.example.org/p/1", "Samandrag"))

	// joins after the broadcast was queued
	require.NoError(t, svc.Subscribe(ctx, "kari@example.org"))
	broadcast := dequeueOne(t, svc)
	ok, err = svc.Verify(ctx, tokenFromJob(t, dequeueOne(t, svc)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tpl.NewPost, broadcast.Template)
	assert.Equal(t, "Ordbok API Utviklingsblogg: Ny bloggpost: Ny post", broadcast.Subject)
	assert.Equal(t, []string{"ola@example.org"}, broadcast.Addresses)
}

func TestGetUnsubscribeTokensPreservesOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Subscribe(ctx, "ola@example.org"))
	ok, err := svc.Verify(ctx, tokenFromJob(t, dequeueOne(t, svc)))
	require.NoError(t, err)
	require.True(t, ok)

	subs, err := svc.Subscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	tokens, err := svc.GetUnsubscribeTokens(ctx, []string{"unknown@example.org", "ola@example.org"})
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Empty(t, tokens[0])
	assert.Equal(t, subs[0].UnsubscribeToken, tokens[1])
}

func TestGetUnsubscribeTokensEmptyInput(t *testing.T) {
	svc, _ := newTestService(t)

	tokens, err := svc.GetUnsubscribeTokens(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, tokens)
}

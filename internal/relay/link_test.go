package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileferry/fileferry/pkg/objectstore"
)

type fakePresigner struct {
	err   error
	calls int
}

func (f *fakePresigner) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	// deterministic for a fixed key and expiry
	return fmt.Sprintf("https://store.example/%s?expires=%d", key, int64(expiry.Seconds())), nil
}

func TestLinkIssuerDeterministic(t *testing.T) {
	issuer := NewLinkIssuer(&fakePresigner{}, time.Hour, MaxLinkTTL)

	first, err := issuer.Issue(context.Background(), "uploads/a.bin", time.Hour)
	require.NoError(t, err)
	second, err := issuer.Issue(context.Background(), "uploads/a.bin", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, first.URL, second.URL)
	assert.False(t, first.Expired())
}

func TestLinkIssuerZeroTTLExpiresImmediately(t *testing.T) {
	issuer := NewLinkIssuer(&fakePresigner{}, time.Hour, MaxLinkTTL)

	link, err := issuer.Issue(context.Background(), "uploads/a.bin", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, link.URL)
	assert.True(t, link.Expired())
}

func TestLinkIssuerNegativeTTLUsesDefault(t *testing.T) {
	issuer := NewLinkIssuer(&fakePresigner{}, 30*time.Minute, MaxLinkTTL)

	link, err := issuer.Issue(context.Background(), "uploads/a.bin", -1)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), link.ExpiresAt, 5*time.Second)
}

func TestLinkIssuerClampsToMaxTTL(t *testing.T) {
	issuer := NewLinkIssuer(&fakePresigner{}, time.Hour, 2*time.Hour)

	link, err := issuer.Issue(context.Background(), "uploads/a.bin", 100*time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), link.ExpiresAt, 5*time.Second)
}

func TestLinkIssuerSigningFailure(t *testing.T) {
	presigner := &fakePresigner{err: objectstore.NewError("presign", "uploads/a.bin", "s3", objectstore.ErrSigning)}
	issuer := NewLinkIssuer(presigner, time.Hour, MaxLinkTTL)

	_, err := issuer.Issue(context.Background(), "uploads/a.bin", time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, objectstore.ErrSigning)
}

package relay

import (
	"context"
	"time"

	"github.com/fileferry/fileferry/pkg/objectstore"
)

// Link is a time-limited retrieval URL for a stored object. Links are
// derived, never persisted, and can be reissued any number of times for the
// same key.
type Link struct {
	URL       string
	ExpiresAt time.Time
}

// Expired reports whether the link is past its expiry.
func (l Link) Expired() bool {
	return !time.Now().Before(l.ExpiresAt)
}

// LinkIssuer mints presigned retrieval links. Signing is local to the
// credentials; it fails only when they are unusable.
type LinkIssuer struct {
	presigner  objectstore.Presigner
	defaultTTL time.Duration
	maxTTL     time.Duration
}

// NewLinkIssuer creates an issuer with the given default and maximum TTLs.
func NewLinkIssuer(presigner objectstore.Presigner, defaultTTL, maxTTL time.Duration) *LinkIssuer {
	if defaultTTL <= 0 {
		defaultTTL = DefaultLinkTTL
	}
	if maxTTL <= 0 {
		maxTTL = MaxLinkTTL
	}
	return &LinkIssuer{presigner: presigner, defaultTTL: defaultTTL, maxTTL: maxTTL}
}

// Issue mints a link for key valid for ttl. A zero ttl produces an
// immediately expired link; a negative ttl selects the default; anything
// above the maximum is clamped to it.
func (i *LinkIssuer) Issue(ctx context.Context, key string, ttl time.Duration) (Link, error) {
	switch {
	case ttl < 0:
		ttl = i.defaultTTL
	case ttl > i.maxTTL:
		ttl = i.maxTTL
	}

	// presigners reject non-positive expiries, so an expired link is
	// signed with the smallest valid window
	signTTL := ttl
	if signTTL <= 0 {
		signTTL = time.Second
		ttl = 0
	}

	url, err := i.presigner.PresignGet(ctx, key, signTTL)
	if err != nil {
		return Link{}, err
	}

	return Link{URL: url, ExpiresAt: time.Now().Add(ttl)}, nil
}

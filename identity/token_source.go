package identity

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var _ oauth2.TokenSource = (*RefreshTokenSource)(nil)

// RefreshTokenSource mints access tokens from a rotating refresh token. Concurrent
// callers share one in-flight refresh.
type RefreshTokenSource struct {
	ctx      context.Context
	client   *Client
	onRotate func(TokenPair)

	mu           sync.Mutex
	refreshToken string
	group        singleflight.Group
}

// TokenSource returns a RefreshTokenSource starting from refreshToken. onRotate, when
// set, is called with every new pair so it can be persisted.
func (c *Client) TokenSource(ctx context.Context, refreshToken string, onRotate func(TokenPair)) *RefreshTokenSource {
	return &RefreshTokenSource{
		ctx:          ctx,
		client:       c,
		onRotate:     onRotate,
		refreshToken: refreshToken,
	}
}

func (s *RefreshTokenSource) Token() (*oauth2.Token, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		s.mu.Lock()
		current := s.refreshToken
		s.mu.Unlock()

		pair, err := s.client.Refresh(s.ctx, current)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.refreshToken = pair.RefreshToken
		s.mu.Unlock()

		if s.onRotate != nil {
			s.onRotate(pair)
		}
		return pair.OAuth2Token(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

// RefreshToken returns the latest refresh token.
func (s *RefreshTokenSource) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

package gigachat

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// expiryMargin is the safety window before expires_at within which a
	// cached credential is treated as stale and refreshed proactively.
	expiryMargin = 60 * time.Second

	// refreshTimeout bounds a single token request.
	refreshTimeout = 30 * time.Second
)

// tokenFetcher abstracts the OAuth call so the manager can be tested
// against fakes.
type tokenFetcher interface {
	FetchToken(ctx context.Context) (*Credential, error)
}

// refreshCall records one in-flight token refresh. Waiters block on done and
// then read cred/err; the record is discarded afterwards so a failed refresh
// is never cached.
type refreshCall struct {
	done chan struct{}
	cred *Credential
	err  error
}

// TokenManager owns the backend credential. Callers obtain a valid token via
// Token; the manager refreshes transparently when the cache is empty or
// within the expiry margin, and guarantees that concurrent callers share a
// single refresh request instead of issuing their own.
type TokenManager struct {
	auth tokenFetcher

	mu       sync.Mutex
	cred     *Credential
	inflight *refreshCall
}

// NewTokenManager creates a TokenManager backed by the given auth client.
func NewTokenManager(auth *GigaChatAuth) *TokenManager {
	return &TokenManager{auth: auth}
}

// Token returns a currently valid credential, refreshing it first when none
// is cached or the cached one is about to expire. During a refresh all
// callers wait on the same in-flight request; its failure is surfaced to
// every waiter and the next call starts a new attempt.
func (m *TokenManager) Token(ctx context.Context) (*Credential, error) {
	m.mu.Lock()

	if cred := m.cred; cred != nil && time.Until(cred.ExpiresAt) > expiryMargin {
		m.mu.Unlock()
		return cred, nil
	}

	if call := m.inflight; call != nil {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.cred, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	m.mu.Unlock()

	// Refresh on a detached context: cancellation of the leader's request
	// must not fail the waiters sharing this refresh.
	refreshCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	call.cred, call.err = m.auth.FetchToken(refreshCtx)
	cancel()

	m.mu.Lock()
	if call.err == nil {
		m.cred = call.cred
		log.Debugf("gigachat access token refreshed, valid until %s", call.cred.ExpiresAt.Format(time.RFC3339))
	} else {
		log.Warnf("gigachat token refresh failed: %v", call.err)
	}
	m.inflight = nil
	m.mu.Unlock()

	close(call.done)

	if call.err != nil {
		return nil, call.err
	}
	return call.cred, nil
}

// Invalidate drops the cached credential. Called when the backend rejects a
// token that looked valid locally; the next Token call refreshes.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.cred = nil
	m.mu.Unlock()
}

// Package auth gates gateway requests behind Basic credentials.
//
// Authentication is all-or-nothing: the gate is open until the first
// credential is added and closed to anonymous callers from then on.
package auth

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/cloudbox/sysgate"
	"github.com/cloudbox/sysgate/stats"
)

// Realm is announced in the WWW-Authenticate header of rejected requests.
const Realm = "sysgate"

const (
	// at most warnBurst rejection warnings, then one per warnEvery
	warnEvery = 10 * time.Second
	warnBurst = 5
)

type Config struct {
	// Cost is the bcrypt cost used by AddCredential. Zero means bcrypt.DefaultCost.
	Cost int

	Stats     *stats.Stats
	Verbosity string
}

type Gate struct {
	mu      sync.RWMutex
	users   map[string][]byte
	enabled bool

	cost  int
	stats *stats.Stats
	log   zerolog.Logger
	warn  *rate.Limiter
}

func New(c Config) *Gate {
	cost := c.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	st := c.Stats
	if st == nil {
		st = stats.New()
	}

	return &Gate{
		users: make(map[string][]byte),
		cost:  cost,
		stats: st,
		log:   sysgate.GetLogger("auth", c.Verbosity),
		warn:  rate.NewLimiter(rate.Every(warnEvery), warnBurst),
	}
}

// AddCredential stores the bcrypt digest of password for username and
// enables authentication. An existing entry for username is replaced.
//
// bcrypt only hashes the first 72 bytes, so longer passwords are rejected
// with bcrypt.ErrPasswordTooLong and nothing is stored.
func (g *Gate) AddCredential(username, password string) error {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		return fmt.Errorf("hash password: %v: %w", username, err)
	}

	g.store(username, digest)
	return nil
}

// AddDigest stores an already computed bcrypt digest for username and
// enables authentication.
func (g *Gate) AddDigest(username, digest string) error {
	if _, err := bcrypt.Cost([]byte(digest)); err != nil {
		return fmt.Errorf("invalid digest: %v: %w", username, err)
	}

	g.store(username, []byte(digest))
	return nil
}

func (g *Gate) store(username string, digest []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.users[username] = digest
	g.enabled = true

	g.log.Debug().Str("username", username).Msg("Credential Added")
}

// Enabled reports whether any credential has been added.
func (g *Gate) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.enabled
}

// Users returns the sorted usernames of every stored credential.
func (g *Gate) Users() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	users := make([]string, 0, len(g.users))
	for username := range g.users {
		users = append(users, username)
	}
	sort.Strings(users)

	return users
}

// Authorize reports whether the request headers carry valid credentials.
// It always succeeds while authentication is disabled. Malformed headers
// are treated as failed authentication.
func (g *Gate) Authorize(h http.Header) bool {
	g.mu.RLock()
	enabled := g.enabled
	g.mu.RUnlock()

	if !enabled {
		return true
	}

	// net/http parses the "Basic base64(user:pass)" form and reports any
	// missing scheme, bad encoding or missing separator as !ok
	username, password, ok := (&http.Request{Header: h}).BasicAuth()
	if !ok {
		return false
	}

	g.mu.RLock()
	digest, found := g.users[username]
	g.mu.RUnlock()

	if !found {
		return false
	}

	return bcrypt.CompareHashAndPassword(digest, []byte(password)) == nil
}

// Middleware rejects unauthorized requests with 401 before they reach next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if g.Authorize(r.Header) {
			next.ServeHTTP(rw, r)
			return
		}

		g.stats.Rejected.Add(1)

		if g.warn.Allow() {
			hlog.FromRequest(r).Warn().
				Str("remote", r.RemoteAddr).
				Msg("Authentication Failed")
		}

		rw.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", Realm))
		http.Error(rw, "Authentication failed", http.StatusUnauthorized)
	})
}

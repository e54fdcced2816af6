package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VenkatGGG/admin-console/pkg/httpx"
)

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"-"`
}

// ParseUsers reads a comma separated list of email:password:name[:role]
// entries. User ids are derived from the email so they survive restarts.
func ParseUsers(raw string) ([]User, error) {
	var users []User
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("user entry %q must be email:password:name[:role]", entry)
		}
		email := strings.ToLower(strings.TrimSpace(parts[0]))
		if email == "" || parts[1] == "" {
			return nil, fmt.Errorf("user entry %q needs an email and a password", entry)
		}
		role := "admin"
		if len(parts) == 4 && strings.TrimSpace(parts[3]) != "" {
			role = strings.TrimSpace(parts[3])
		}
		users = append(users, User{
			ID:       "usr_" + strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String(), "-", "")[:16],
			Email:    email,
			Name:     strings.TrimSpace(parts[2]),
			Role:     role,
			Password: parts[1],
		})
	}
	return users, nil
}

type userDirectory struct {
	byEmail map[string]User

	mu     sync.RWMutex
	tokens map[string]User
}

func newUserDirectory(users []User) *userDirectory {
	d := &userDirectory{
		byEmail: make(map[string]User, len(users)),
		tokens:  make(map[string]User),
	}
	for _, u := range users {
		d.byEmail[strings.ToLower(strings.TrimSpace(u.Email))] = u
	}
	return d
}

func (d *userDirectory) login(email, password string) (User, string, bool) {
	u, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok || subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return User{}, "", false
	}
	token := "tok_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	d.mu.Lock()
	d.tokens[token] = u
	d.mu.Unlock()
	return u, token, true
}

func (d *userDirectory) lookup(token string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.tokens[token]
	return u, ok
}

func (d *userDirectory) logout(token string) {
	d.mu.Lock()
	delete(d.tokens, token)
	d.mu.Unlock()
}

type userContextKey struct{}

func userFrom(ctx context.Context) User {
	u, _ := ctx.Value(userContextKey{}).(User)
	return u
}

// withAPISecurity requires a bearer token on every route except health,
// metrics and login, and rate limits the create routes per user.
func (s *Server) withAPISecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicRoute(r) {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		user, ok := s.users.lookup(token)
		if token == "" || !ok {
			s.logger.Printf("api unauthorized request: client=%s path=%s", requestClientIdentity(r), r.URL.Path)
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		if s.rateLimiter != nil && isCreateRoute(r) {
			if !s.rateLimiter.Allow(user.ID, s.now()) {
				httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "request rate limit exceeded")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey{}, user)))
	})
}

func isPublicRoute(r *http.Request) bool {
	switch strings.TrimSpace(r.URL.Path) {
	case "/healthz", "/metrics", "/auth/login":
		return true
	default:
		return false
	}
}

func isCreateRoute(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	switch strings.TrimRight(strings.TrimSpace(r.URL.Path), "/") {
	case "/events", "/vouchers/issue":
		return true
	default:
		return false
	}
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, token, ok := s.users.login(req.Email, req.Password)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	s.logger.Printf("api login: user=%s", user.ID)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": user, "token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.users.logout(bearerToken(r))
	httpx.WriteNoContent(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userFrom(r.Context()))
}

func requestClientIdentity(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	raw := strings.TrimSpace(r.RemoteAddr)
	if raw != "" {
		return raw
	}
	return "unknown"
}

type fixedWindowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]rateBucket
}

type rateBucket struct {
	windowStart time.Time
	count       int
}

func newFixedWindowLimiter(limit int, window time.Duration) *fixedWindowLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &fixedWindowLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]rateBucket),
	}
}

func (l *fixedWindowLimiter) Allow(client string, now time.Time) bool {
	key := strings.TrimSpace(client)
	if key == "" {
		key = "unknown"
	}
	t := now.UTC()
	windowStart := t.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.clients[key]
	if bucket.windowStart.IsZero() || !bucket.windowStart.Equal(windowStart) {
		bucket = rateBucket{
			windowStart: windowStart,
			count:       0,
		}
	}
	if bucket.count >= l.limit {
		return false
	}
	bucket.count++
	l.clients[key] = bucket
	l.pruneLocked(windowStart)
	return true
}

func (l *fixedWindowLimiter) pruneLocked(activeWindowStart time.Time) {
	if len(l.clients) < 1000 {
		return
	}
	cutoff := activeWindowStart.Add(-2 * l.window)
	for key, bucket := range l.clients {
		if bucket.windowStart.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

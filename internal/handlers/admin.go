package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gamestore/internal/games"
	"gamestore/pkg/logging/logging"
)

const (
	maxLoginAttempts = 5
	loginLockout     = 15 * time.Minute
)

// AdminHandler serves admin login and cache administration.
type AdminHandler struct {
	Email    string
	Password string
	Token    string
	Games    *games.Service

	attempts *loginAttempts
}

func NewAdminHandler(email, password, token string, svc *games.Service) *AdminHandler {
	return &AdminHandler{
		Email:    email,
		Password: password,
		Token:    token,
		Games:    svc,
		attempts: newLoginAttempts(time.Now),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/admin-login. Five failed attempts from one
// client lock it out for fifteen minutes.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.L(r.Context())
	ip := clientIP(r)

	if h.attempts.limited(ip) {
		writeError(w, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.attempts.record(ip, false)
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if req.Email == "" || req.Password == "" {
		h.attempts.record(ip, false)
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	if !games.ValidateEmail(req.Email) {
		h.attempts.record(ip, false)
		writeError(w, http.StatusBadRequest, "Invalid email format")
		return
	}

	if !h.credentialsMatch(req.Email, req.Password) {
		h.attempts.record(ip, false)
		logger.Warn("admin login failed",
			zap.String("client_ip", ip),
			zap.String("email", req.Email),
		)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.attempts.record(ip, true)
	logger.Info("admin login succeeded", zap.String("client_ip", ip))
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

// IsAdmin handles GET /api/admin-login?email=.
func (h *AdminHandler) IsAdmin(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" || !games.ValidateEmail(email) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "isAdmin": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"isAdmin": h.Email != "" && constantTimeEqual(email, h.Email),
	})
}

// CacheStats handles GET /api/admin/cache.
func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.Games.CacheStats())
}

// ClearCache handles DELETE /api/admin/cache?type=. An empty type clears
// everything.
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	h.Games.ClearCache(r.Context(), kind)

	logging.L(r.Context()).Info("cache cleared by admin", zap.String("type", kind))
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Cache cleared"})
}

// RequireToken guards admin routes with the X-Admin-Token header. With no
// token configured the routes are open.
func (h *AdminHandler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Token != "" && !constantTimeEqual(r.Header.Get("X-Admin-Token"), h.Token) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AdminHandler) credentialsMatch(email, password string) bool {
	if h.Email == "" || h.Password == "" {
		return false
	}
	// evaluate both so timing does not reveal which one differed
	emailOK := constantTimeEqual(email, h.Email)
	passOK := constantTimeEqual(password, h.Password)
	return emailOK && passOK
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// clientIP returns the address set by chi's RealIP, without a port.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	if addr == "" {
		return "unknown"
	}
	return addr
}

type attempt struct {
	count int
	last  time.Time
}

// loginAttempts counts failed logins per client.
type loginAttempts struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*attempt
}

func newLoginAttempts(now func() time.Time) *loginAttempts {
	return &loginAttempts{
		now:     now,
		entries: make(map[string]*attempt),
	}
}

func (l *loginAttempts) limited(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.entries[key]
	if !ok {
		return false
	}
	if l.now().Sub(a.last) > loginLockout {
		delete(l.entries, key)
		return false
	}
	return a.count >= maxLoginAttempts
}

func (l *loginAttempts) record(key string, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		delete(l.entries, key)
		return
	}

	now := l.now()
	for k, a := range l.entries {
		if now.Sub(a.last) > loginLockout {
			delete(l.entries, k)
		}
	}

	a, ok := l.entries[key]
	if !ok {
		a = &attempt{}
		l.entries[key] = a
	}
	a.count++
	a.last = now
}

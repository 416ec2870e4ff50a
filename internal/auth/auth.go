// Package auth guards the admin API with a shared password and short-lived
// HS256 session tokens.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Authenticator struct {
	mu           sync.RWMutex
	password     string
	passwordFile string

	secret []byte
	ttl    time.Duration
	logger *slog.Logger

	now func() time.Time
}

type Options struct {
	Password     string
	PasswordFile string
	JWTSecret    string
	SessionTTL   time.Duration
	Logger       *slog.Logger
}

// New builds an Authenticator. When PasswordFile is set the file's content
// wins over Password; an empty JWTSecret gets a random per-process secret,
// which invalidates sessions across restarts.
func New(opts Options) (*Authenticator, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &Authenticator{
		password:     strings.TrimSpace(opts.Password),
		passwordFile: strings.TrimSpace(opts.PasswordFile),
		ttl:          opts.SessionTTL,
		logger:       logger,
		now:          time.Now,
	}
	if a.ttl <= 0 {
		a.ttl = 24 * time.Hour
	}
	if secret := strings.TrimSpace(opts.JWTSecret); secret != "" {
		a.secret = []byte(secret)
	} else {
		a.secret = make([]byte, 32)
		if _, err := rand.Read(a.secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		logger.Warn("no JWT secret configured, sessions will not survive restarts")
	}
	if a.passwordFile != "" {
		if err := a.reloadPassword(); err != nil {
			return nil, err
		}
	}
	if a.currentPassword() == "" {
		return nil, fmt.Errorf("admin password is not configured")
	}
	return a, nil
}

func (a *Authenticator) currentPassword() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.password
}

func (a *Authenticator) reloadPassword() error {
	data, err := os.ReadFile(a.passwordFile)
	if err != nil {
		return fmt.Errorf("read password file %s: %w", a.passwordFile, err)
	}
	pass := strings.TrimSpace(string(data))
	if pass == "" {
		return fmt.Errorf("password file %s is empty", a.passwordFile)
	}
	a.mu.Lock()
	changed := a.password != pass
	a.password = pass
	a.mu.Unlock()
	if changed {
		a.logger.Info("admin password reloaded", "path", a.passwordFile)
	}
	return nil
}

// Verify checks a login attempt in constant time.
func (a *Authenticator) Verify(password string) bool {
	current := a.currentPassword()
	return subtle.ConstantTimeCompare([]byte(current), []byte(password)) == 1
}

// IssueToken mints a session token and returns it with its expiry.
func (a *Authenticator) IssueToken() (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"iat": now.Unix(),
		"exp": expires.Unix(),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// ValidateToken checks a session token's signature and expiry.
func (a *Authenticator) ValidateToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid session token")
	}
	return nil
}

// Middleware rejects requests lacking a valid Bearer session token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "missing authorization header")
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			unauthorized(w, "invalid authorization format")
			return
		}
		if err := a.ValidateToken(tokenString); err != nil {
			unauthorized(w, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

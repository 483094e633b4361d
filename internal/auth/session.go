package auth

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const SessionCookie = "session"

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")
)

// Identity is the authenticated user carried by a session.
type Identity struct {
	UserID   string
	Username string
	Email    string
}

// Session is a decoded, validated session token.
type Session struct {
	Identity
	ID         string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	LastActive time.Time
}

// Revoker records ended sessions so copies of their cookies stop working.
type Revoker interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// ManagerConfig configures a Manager. Revoker may be nil.
type ManagerConfig struct {
	Secret       string
	IdleTimeout  time.Duration
	MaxLifetime  time.Duration
	SecureCookie bool
	Revoker      Revoker
}

// Manager issues and validates session tokens: HS256 JWT claims sealed
// with XChaCha20-Poly1305, so the cookie is both tamper-proof and opaque.
type Manager struct {
	signKey  []byte
	aead     cipher.AEAD
	idle     time.Duration
	lifetime time.Duration
	secure   bool
	revoker  Revoker
	now      func() time.Time
}

type sessionClaims struct {
	Username string `json:"usr"`
	Email    string `json:"eml"`
	ActiveAt int64  `json:"act"`
	jwt.RegisteredClaims
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is empty")
	}
	if cfg.IdleTimeout <= 0 || cfg.MaxLifetime <= 0 {
		return nil, errors.New("session timeouts must be positive")
	}

	signKey, err := deriveKey(cfg.Secret, "session signing", 32)
	if err != nil {
		return nil, err
	}
	encKey, err := deriveKey(cfg.Secret, "session encryption", chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, fmt.Errorf("session cipher: %w", err)
	}

	return &Manager{
		signKey:  signKey,
		aead:     aead,
		idle:     cfg.IdleTimeout,
		lifetime: cfg.MaxLifetime,
		secure:   cfg.SecureCookie,
		revoker:  cfg.Revoker,
		now:      time.Now,
	}, nil
}

func deriveKey(secret, info string, n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

// Begin starts a new session for id.
func (m *Manager) Begin(id Identity) (string, error) {
	now := m.now()
	return m.encode(&Session{
		Identity:   id,
		ID:         uuid.NewString(),
		IssuedAt:   now,
		ExpiresAt:  now.Add(m.lifetime),
		LastActive: now,
	})
}

// Touch re-issues s with its idle window restarted. The absolute expiry
// is unchanged.
func (m *Manager) Touch(s *Session) (string, error) {
	next := *s
	next.LastActive = m.now()
	return m.encode(&next)
}

// Validate decodes token. It returns ErrSessionExpired past either the idle
// or the absolute limit and ErrInvalidSession for anything else.
func (m *Manager) Validate(ctx context.Context, token string) (*Session, error) {
	s, err := m.decode(token)
	if err != nil {
		return nil, err
	}
	if m.revoker != nil {
		revoked, err := m.revoker.IsRevoked(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
		}
		if revoked {
			return nil, ErrInvalidSession
		}
	}
	return s, nil
}

// End revokes the session behind token when a Revoker is configured.
// Invalid or already expired tokens are ignored.
func (m *Manager) End(ctx context.Context, token string) error {
	if m.revoker == nil || token == "" {
		return nil
	}
	s, err := m.decode(token)
	if err != nil {
		return nil
	}
	return m.revoker.Revoke(ctx, s.ID, s.ExpiresAt.Sub(m.now()))
}

func (m *Manager) encode(s *Session) (string, error) {
	c := sessionClaims{
		Username: s.Username,
		Email:    s.Email,
		ActiveAt: s.LastActive.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			ID:        s.ID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.signKey)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}

	nonce := make([]byte, m.aead.NonceSize(), m.aead.NonceSize()+len(signed)+m.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("session nonce: %w", err)
	}
	sealed := m.aead.Seal(nonce, nonce, []byte(signed), []byte(SessionCookie))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (m *Manager) decode(token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < m.aead.NonceSize()+m.aead.Overhead() {
		return nil, ErrInvalidSession
	}
	nonce, sealed := raw[:m.aead.NonceSize()], raw[m.aead.NonceSize():]
	plain, err := m.aead.Open(nil, nonce, sealed, []byte(SessionCookie))
	if err != nil {
		return nil, ErrInvalidSession
	}

	var c sessionClaims
	_, err = jwt.ParseWithClaims(string(plain), &c,
		func(*jwt.Token) (any, error) { return m.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidSession
	}
	if c.Subject == "" || c.ID == "" || c.IssuedAt == nil {
		return nil, ErrInvalidSession
	}

	s := &Session{
		Identity:   Identity{UserID: c.Subject, Username: c.Username, Email: c.Email},
		ID:         c.ID,
		IssuedAt:   c.IssuedAt.Time,
		ExpiresAt:  c.ExpiresAt.Time,
		LastActive: time.Unix(c.ActiveAt, 0),
	}
	if !m.now().Before(s.LastActive.Add(m.idle)) {
		return nil, ErrSessionExpired
	}
	return s, nil
}

// TokenFrom returns the session cookie value, or "".
func (m *Manager) TokenFrom(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (m *Manager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.idle / time.Second),
	})
}

func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

package devserver

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// User is a seeded account. Password is plain text in seeds only; the
// server keeps the bcrypt hash.
type User struct {
	Username string `json:"username" yaml:"username"`
	Name     string `json:"name" yaml:"name"`
	Password string `json:"password,omitempty" yaml:"password"`
}

type account struct {
	username string
	name     string
	hash     []byte
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Username string
	Name     string
}

type principalKey struct{}

// PrincipalFrom returns the caller set by the auth middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator checks passwords and issues HS256 tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	cost   int

	mu       sync.RWMutex
	accounts map[string]account
}

// NewAuthenticator creates an Authenticator. An empty secret is replaced by
// random bytes, so tokens do not survive a restart.
func NewAuthenticator(secret []byte, ttl time.Duration, cost int) (*Authenticator, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Authenticator{
		secret:   secret,
		ttl:      ttl,
		cost:     cost,
		accounts: make(map[string]account),
	}, nil
}

// AddUser hashes the password and stores the account.
func (a *Authenticator) AddUser(u User) error {
	if u.Username == "" || u.Password == "" {
		return errors.New("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), a.cost)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", u.Username, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[u.Username] = account{username: u.Username, name: u.Name, hash: hash}
	return nil
}

// ErrInvalidCredentials is returned for an unknown user or wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Login verifies credentials and returns a signed token.
func (a *Authenticator) Login(username, password string) (string, Principal, error) {
	a.mu.RLock()
	acct, ok := a.accounts[username]
	a.mu.RUnlock()
	if !ok {
		return "", Principal{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return "", Principal{}, ErrInvalidCredentials
	}

	p := Principal{Username: acct.username, Name: acct.name}
	token, err := a.issue(p)
	if err != nil {
		return "", Principal{}, err
	}
	return token, p, nil
}

func (a *Authenticator) issue(p Principal) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  p.Username,
		"name": p.Name,
		"iat":  now.Unix(),
		"exp":  now.Add(a.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns its principal.
func (a *Authenticator) Verify(token string) (Principal, error) {
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errors.New("unexpected claims type")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Principal{}, errors.New("token has no subject")
	}

	a.mu.RLock()
	_, known := a.accounts[sub]
	a.mu.RUnlock()
	if !known {
		return Principal{}, errors.New("unknown user")
	}

	name, _ := claims["name"].(string)
	return Principal{Username: sub, Name: name}, nil
}

// RequireAuth rejects requests without a valid bearer token.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			Error(w, http.StatusUnauthorized, "token missing or invalid")
			return
		}
		p, err := a.Verify(token)
		if err != nil {
			Error(w, http.StatusUnauthorized, "token missing or invalid")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// Clear removes all accounts.
func (a *Authenticator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts = make(map[string]account)
}

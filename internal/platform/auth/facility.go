package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/mediconnet/mediconnet/internal/platform/apperr"
)

var (
	// ErrCredentialNotFound indicates the presented key matches no facility.
	ErrCredentialNotFound = errors.New("facility credential not found")
)

const facilityIDKey contextKey = "facility_id"

// FacilityCredential is the write-admission record for one facility. The key
// material itself is never stored; only its SHA-256 hash is persisted.
type FacilityCredential struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	KeyHash   string    `json:"-"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

// CredentialStore resolves and manages facility credentials.
type CredentialStore interface {
	GetByKeyHash(ctx context.Context, hash string) (*FacilityCredential, error)
	Create(ctx context.Context, cred *FacilityCredential) error
}

// HashKey returns the hex SHA-256 digest of a raw facility key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateKey produces a new raw facility key and its stored hash.
func GenerateKey() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate key material: %w", err)
	}
	raw = "fac_" + hex.EncodeToString(buf)
	return raw, HashKey(raw), nil
}

// FacilityAuthMiddleware admits facility writes. The key is presented in the
// X-API-Key header or the apiKey query parameter. A missing key is an
// authentication failure; an unknown or unapproved key is a uniform
// authorization failure with no further detail.
func FacilityAuthMiddleware(store CredentialStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get("X-API-Key")
			if key == "" {
				key = c.QueryParam("apiKey")
			}
			if key == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "API key is required")
			}

			cred, err := store.GetByKeyHash(c.Request().Context(), HashKey(key))
			switch {
			case errors.Is(err, ErrCredentialNotFound):
				return echo.NewHTTPError(http.StatusForbidden, "invalid API key or facility not approved")
			case err != nil:
				// Storage faults are not authorization outcomes.
				return apperr.HTTP(apperr.Internal(err))
			case !cred.Approved:
				return echo.NewHTTPError(http.StatusForbidden, "invalid API key or facility not approved")
			}

			ctx := context.WithValue(c.Request().Context(), facilityIDKey, cred.ID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("facility_id", cred.ID)
			return next(c)
		}
	}
}

// FacilityFromContext returns the admitted facility identity, or uuid.Nil.
func FacilityFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(facilityIDKey).(uuid.UUID)
	return id
}

// ---------------------------------------------------------------------------
// Stores
// ---------------------------------------------------------------------------

// InMemoryCredentialStore is a thread-safe CredentialStore for development
// and tests.
type InMemoryCredentialStore struct {
	mu     sync.RWMutex
	byHash map[string]*FacilityCredential
}

func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{byHash: make(map[string]*FacilityCredential)}
}

func (s *InMemoryCredentialStore) GetByKeyHash(_ context.Context, hash string) (*FacilityCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byHash[hash]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	cp := *cred
	return &cp, nil
}

func (s *InMemoryCredentialStore) Create(_ context.Context, cred *FacilityCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}
	cp := *cred
	s.byHash[cred.KeyHash] = &cp
	return nil
}

type credentialStorePG struct {
	pool *pgxpool.Pool
}

// NewCredentialStorePG returns a CredentialStore backed by the
// facility_credential table.
func NewCredentialStorePG(pool *pgxpool.Pool) CredentialStore {
	return &credentialStorePG{pool: pool}
}

func (s *credentialStorePG) GetByKeyHash(ctx context.Context, hash string) (*FacilityCredential, error) {
	cred := &FacilityCredential{KeyHash: hash}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, approved, created_at
		FROM facility_credential WHERE key_hash = $1`, hash,
	).Scan(&cred.ID, &cred.Name, &cred.Approved, &cred.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("lookup facility credential: %w", err)
	}
	return cred, nil
}

func (s *credentialStorePG) Create(ctx context.Context, cred *FacilityCredential) error {
	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO facility_credential (id, name, key_hash, approved)
		VALUES ($1, $2, $3, $4)`,
		cred.ID, cred.Name, cred.KeyHash, cred.Approved,
	)
	if err != nil {
		return fmt.Errorf("create facility credential: %w", err)
	}
	return nil
}

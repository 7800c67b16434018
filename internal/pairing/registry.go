package pairing

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown or expired codes.
	ErrNotFound = errors.New("pairing code not found")
	// ErrCodeTaken is returned by a Store when the code is already active.
	ErrCodeTaken = errors.New("pairing code already in use")
	// ErrExhausted is returned when no free code was found within the attempt budget.
	ErrExhausted = errors.New("could not allocate a unique pairing code")
)

// Pairing is an outstanding device pairing request.
type Pairing struct {
	Code      string    `json:"code"`
	DeviceID  string    `json:"uuid"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether p is no longer valid at now.
func (p Pairing) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Store persists active pairings.
type Store interface {
	// Insert fails with ErrCodeTaken if the code is held by a pairing that has not expired.
	Insert(p Pairing, now time.Time) error
	Get(code string) (Pairing, error)
	Delete(code string) (Pairing, error)
	PurgeExpired(now time.Time) int
}

const defaultMaxAttempts = 16

// Registry hands out pairing codes that are unique among active pairings.
type Registry struct {
	store       Store
	ttl         time.Duration
	maxAttempts int

	now      func() time.Time
	generate func() string
}

// NewRegistry creates a Registry whose codes live for ttl.
func NewRegistry(store Store, ttl time.Duration) *Registry {
	return &Registry{
		store:       store,
		ttl:         ttl,
		maxAttempts: defaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		generate:    GenerateCode,
	}
}

// Issue allocates a fresh code for a new device.
func (r *Registry) Issue() (Pairing, error) {
	now := r.now()
	deviceID := uuid.NewString()

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		p := Pairing{
			Code:      r.generate(),
			DeviceID:  deviceID,
			CreatedAt: now,
			ExpiresAt: now.Add(r.ttl),
		}

		err := r.store.Insert(p, now)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return Pairing{}, err
		}
		log.Printf("DEBUG: pairing code collision on attempt %d", attempt+1)
	}

	return Pairing{}, fmt.Errorf("%w after %d attempts", ErrExhausted, r.maxAttempts)
}

// Lookup returns the active pairing for code. Codes are case insensitive.
func (r *Registry) Lookup(code string) (Pairing, error) {
	p, err := r.store.Get(normalize(code))
	if err != nil {
		return Pairing{}, err
	}
	if p.Expired(r.now()) {
		return Pairing{}, ErrNotFound
	}
	return p, nil
}

// Claim consumes code, so it can be used once.
func (r *Registry) Claim(code string) (Pairing, error) {
	p, err := r.store.Delete(normalize(code))
	if err != nil {
		return Pairing{}, err
	}
	if p.Expired(r.now()) {
		return Pairing{}, ErrNotFound
	}
	return p, nil
}

// Sweep drops expired pairings and returns how many were removed.
func (r *Registry) Sweep() int {
	return r.store.PurgeExpired(r.now())
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

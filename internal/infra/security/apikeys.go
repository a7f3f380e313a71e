package security

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"stationbeds/internal/app/caller"
)

var (
	ErrMalformedKeys = errors.New("security: malformed API_KEYS entry")
	ErrUnknownKey    = errors.New("security: unknown api key")
	ErrMalformedKey  = errors.New("security: api key must be <name>.<secret>")
)

// KeyRing authenticates bearer tokens of the form "<name>.<secret>" against
// configured "name:role:bcrypt-hash" entries.
type KeyRing struct {
	Hasher BcryptHasher

	entries map[string]keyEntry
	// verified caches tokens that already passed bcrypt.
	mu       sync.RWMutex
	verified map[string]caller.Caller
}

type keyEntry struct {
	name string
	role string
	hash string
}

// ParseKeyRing reads a comma separated list of name:role:hash entries.
func ParseKeyRing(raw string) (*KeyRing, error) {
	ring := &KeyRing{entries: map[string]keyEntry{}, verified: map[string]caller.Caller{}}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 3)
		if len(fields) != 3 || fields[0] == "" || fields[2] == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedKeys, part)
		}
		role := strings.ToLower(fields[1])
		if role != caller.RoleAdmin && role != caller.RoleMember {
			return nil, fmt.Errorf("%w: unknown role %q", ErrMalformedKeys, fields[1])
		}
		ring.entries[fields[0]] = keyEntry{name: fields[0], role: role, hash: fields[2]}
	}
	return ring, nil
}

// Entry builds the API_KEYS entry for a freshly generated secret.
func (r *KeyRing) Entry(name, role, secret string) (string, error) {
	hash, err := r.Hasher.Hash(secret)
	if err != nil {
		return "", err
	}
	return name + ":" + role + ":" + hash, nil
}

func (r *KeyRing) Len() int { return len(r.entries) }

func (r *KeyRing) Authenticate(token string) (caller.Caller, error) {
	r.mu.RLock()
	c, ok := r.verified[token]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}
	name, secret, found := strings.Cut(strings.TrimSpace(token), ".")
	if !found || name == "" || secret == "" {
		return caller.Caller{}, ErrMalformedKey
	}
	entry, ok := r.entries[name]
	if !ok {
		return caller.Caller{}, ErrUnknownKey
	}
	if err := r.Hasher.Compare(entry.hash, secret); err != nil {
		return caller.Caller{}, ErrUnknownKey
	}
	c = caller.Caller{ID: entry.name, Name: entry.name, Role: entry.role}
	r.mu.Lock()
	r.verified[token] = c
	r.mu.Unlock()
	return c, nil
}

package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used when no database is configured and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]Credential
	byName map[string]string // name -> id
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Credential),
		byName: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, c Credential) error {
	const op = "identity.Create"
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" || c.Name == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing id or name"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[c.ID]; ok {
		return ConflictError{Op: op, Field: "id"}
	}
	if _, ok := s.byName[c.Name]; ok {
		return ConflictError{Op: op, Field: FieldName}
	}
	s.byID[c.ID] = clone(c)
	s.byName[c.Name] = c.ID
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return Credential{}, NotFoundError{Op: "identity.FindByID", Resource: "credential"}
	}
	return clone(c), nil
}

func (s *MemoryStore) FindByName(ctx context.Context, name string) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[name]
	if !ok {
		return Credential{}, NotFoundError{Op: "identity.FindByName", Resource: "credential"}
	}
	return clone(s.byID[id]), nil
}

func (s *MemoryStore) Upsert(ctx context.Context, c Credential) error {
	const op = "identity.Upsert"
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" || c.Name == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing id or name"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byName[c.Name]; ok && owner != c.ID {
		return ConflictError{Op: op, Field: FieldName}
	}
	if prev, ok := s.byID[c.ID]; ok {
		c.CreatedAt = prev.CreatedAt
		c.UpdatedAt = advance(prev.UpdatedAt, c.UpdatedAt)
		if prev.Name != c.Name {
			delete(s.byName, prev.Name)
		}
	}
	s.byID[c.ID] = clone(c)
	s.byName[c.Name] = c.ID
	return nil
}

func (s *MemoryStore) SwapRefreshHash(ctx context.Context, id string, expected, next *string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok || !sameHash(c.RefreshTokenHash, expected) {
		return staleSession()
	}
	c.RefreshTokenHash = copyPtr(next)
	c.UpdatedAt = advance(c.UpdatedAt, now)
	s.byID[id] = c
	return nil
}

func (s *MemoryStore) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return NotFoundError{Op: "identity.DeleteByID", Resource: "credential"}
	}
	delete(s.byID, id)
	delete(s.byName, c.Name)
	return nil
}

func sameHash(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clone(c Credential) Credential {
	c.RefreshTokenHash = copyPtr(c.RefreshTokenHash)
	return c
}

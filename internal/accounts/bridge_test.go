package accounts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memoryRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*Account
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[uuid.UUID]*Account)}
}

func (m *memoryRepo) Create(_ context.Context, externalID uuid.UUID, displayName string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[externalID]; ok {
		return nil, ErrConflict
	}
	now := time.Now().UTC()
	acct := &Account{ID: uuid.New(), ExternalIdentityID: externalID, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
	m.accounts[externalID] = acct
	cp := *acct
	return &cp, nil
}

func (m *memoryRepo) GetByExternalID(_ context.Context, externalID uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (m *memoryRepo) GetOrCreate(ctx context.Context, externalID uuid.UUID, displayName string) (*Account, error) {
	if acct, err := m.GetByExternalID(ctx, externalID); err == nil {
		return acct, nil
	}
	acct, err := m.Create(ctx, externalID, displayName)
	if errors.Is(err, ErrConflict) {
		return m.GetByExternalID(ctx, externalID)
	}
	return acct, err
}

func (m *memoryRepo) UpdateSettings(_ context.Context, id uuid.UUID, upd SettingsUpdate) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acct := range m.accounts {
		if acct.ID == id {
			if upd.Username != nil {
				acct.Username = upd.Username
			}
			if upd.DisplayName != nil {
				acct.DisplayName = *upd.DisplayName
			}
			if upd.AvatarURL != nil {
				acct.AvatarURL = upd.AvatarURL
			}
			acct.UpdatedAt = time.Now().UTC()
			cp := *acct
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepo) DeleteByExternalID(_ context.Context, externalID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, externalID)
	return nil
}

func TestBridgeGetOrCreateConcurrent(t *testing.T) {
	bridge := NewBridge(newMemoryRepo(), zap.NewNop())
	externalID := uuid.New()

	const workers = 16
	results := make([]uuid.UUID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acct, err := bridge.GetOrCreate(context.Background(), externalID, "a@x.com")
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			results[i] = acct.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatalf("worker %d got account %s, worker 0 got %s", i, results[i], results[0])
		}
	}
}

func TestBridgeUpdateSettingsValidation(t *testing.T) {
	repo := newMemoryRepo()
	bridge := NewBridge(repo, zap.NewNop())
	ctx := context.Background()

	acct, err := bridge.Create(ctx, uuid.New(), "a@x.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, bad := range []string{"", "   ", strings.Repeat("x", 256)} {
		name := bad
		if _, err := bridge.UpdateSettings(ctx, acct.ID, SettingsUpdate{Username: &name}); !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("username %q: err = %v, want ErrInvalidUsername", bad, err)
		}
	}

	name := "  alice  "
	updated, err := bridge.UpdateSettings(ctx, acct.ID, SettingsUpdate{Username: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Username == nil || *updated.Username != "alice" {
		t.Errorf("username = %v, want %q", updated.Username, "alice")
	}
	if updated.DisplayName != "a@x.com" {
		t.Errorf("display name changed to %q", updated.DisplayName)
	}
}

func TestBridgeDeleteIdempotent(t *testing.T) {
	bridge := NewBridge(newMemoryRepo(), zap.NewNop())
	externalID := uuid.New()

	if _, err := bridge.Create(context.Background(), externalID, "a@x.com"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := bridge.Delete(context.Background(), externalID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := bridge.Delete(context.Background(), externalID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

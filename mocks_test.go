package identity_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	identity "github.com/craftyourstyle/go-identity"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// memoryStore is an in-memory Accounts + RepositoryManager fake. Each
// statement is atomic but RunInTx does NOT serialize the whole callback,
// matching a read-committed store: two transactions can read the same row
// before either writes. Single-use token guarantees therefore have to come
// from the guarded consume writes, exactly as against a real database.
type memoryStore struct {
	mu       sync.Mutex
	seq      int64
	accounts map[int64]*identity.Account
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: map[int64]*identity.Account{}}
}

var _ identity.Accounts = (*memoryStore)(nil)
var _ identity.RepositoryManager = (*memoryStore)(nil)

func (m *memoryStore) Validate() error { return nil }
func (m *memoryStore) MustValidate()   {}

func (m *memoryStore) Accounts() identity.Accounts { return m }

func (m *memoryStore) Activity() repository.Repository[*identity.ActivityLog] { return nil }

func (m *memoryStore) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *memoryStore) GetByID(ctx context.Context, id int64) (*identity.Account, error) {
	return m.GetByIDTx(ctx, nil, id)
}

func (m *memoryStore) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.accounts[id]; ok {
		return clone(record), nil
	}
	return nil, identity.ErrAccountNotFound
}

func (m *memoryStore) GetByEmail(ctx context.Context, email string) (*identity.Account, error) {
	return m.GetByEmailTx(ctx, nil, email)
}

func (m *memoryStore) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.accounts {
		if record.Email == email {
			return clone(record), nil
		}
	}
	return nil, identity.ErrAccountNotFound
}

func (m *memoryStore) GetByVerificationToken(ctx context.Context, token string) (*identity.Account, error) {
	return m.GetByVerificationTokenTx(ctx, nil, token)
}

func (m *memoryStore) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.accounts {
		if record.VerificationToken != "" && record.VerificationToken == token {
			return clone(record), nil
		}
	}
	return nil, identity.ErrAccountNotFound
}

func (m *memoryStore) GetByRecoveryToken(ctx context.Context, token string) (*identity.Account, error) {
	return m.GetByRecoveryTokenTx(ctx, nil, token)
}

func (m *memoryStore) GetByRecoveryTokenTx(ctx context.Context, tx bun.IDB, token string) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.accounts {
		if record.RecoveryToken != "" && record.RecoveryToken == token {
			return clone(record), nil
		}
	}
	return nil, identity.ErrAccountNotFound
}

func (m *memoryStore) Create(ctx context.Context, record *identity.Account) (*identity.Account, error) {
	return m.CreateTx(ctx, nil, record)
}

func (m *memoryStore) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Account) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing.Email == record.Email {
			return nil, identity.ErrDuplicateEmail
		}
	}

	m.seq++
	record.ID = m.seq
	now := time.Now()
	record.CreatedAt = &now
	record.UpdatedAt = &now
	m.accounts[record.ID] = clone(record)
	return clone(record), nil
}

func (m *memoryStore) Update(ctx context.Context, record *identity.Account) (*identity.Account, error) {
	return m.UpdateTx(ctx, nil, record)
}

func (m *memoryStore) UpdateTx(ctx context.Context, tx bun.IDB, record *identity.Account) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[record.ID]; !ok {
		return nil, identity.ErrAccountNotFound
	}
	now := time.Now()
	record.UpdatedAt = &now
	m.accounts[record.ID] = clone(record)
	return clone(record), nil
}

func (m *memoryStore) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, record *identity.Account, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.accounts[record.ID]
	if !ok || stored.VerificationToken != token {
		return identity.ErrInvalidToken
	}
	m.accounts[record.ID] = clone(record)
	return nil
}

func (m *memoryStore) ConsumeRecoveryTokenTx(ctx context.Context, tx bun.IDB, record *identity.Account, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.accounts[record.ID]
	if !ok || stored.RecoveryToken != token {
		return identity.ErrInvalidToken
	}
	m.accounts[record.ID] = clone(record)
	return nil
}

func (m *memoryStore) DeleteByID(ctx context.Context, id int64) (bool, error) {
	return m.DeleteByIDTx(ctx, nil, id)
}

func (m *memoryStore) DeleteByIDTx(ctx context.Context, tx bun.IDB, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[id]; !ok {
		return false, nil
	}
	delete(m.accounts, id)
	return true, nil
}

func (m *memoryStore) List(ctx context.Context) ([]*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*identity.Account{}
	for _, record := range m.accounts {
		out = append(out, clone(record))
	}
	return out, nil
}

// stored returns the raw persisted record, for assertions on fields the
// service scrubs from its results.
func (m *memoryStore) stored(id int64) *identity.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.accounts[id]; ok {
		return clone(record)
	}
	return nil
}

func clone(a *identity.Account) *identity.Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.RecoveryExpiry != nil {
		expiry := *a.RecoveryExpiry
		c.RecoveryExpiry = &expiry
	}
	return &c
}

// capturingSink records every published event.
type capturingSink struct {
	mu     sync.Mutex
	events []identity.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, event identity.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingSink) all() []identity.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]identity.ActivityEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *capturingSink) eventTypes() []identity.ActivityEventType {
	types := []identity.ActivityEventType{}
	for _, event := range c.all() {
		types = append(types, event.EventType)
	}
	return types
}

// MockNotifier implements identity.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendVerification(ctx context.Context, email, name, token string) error {
	args := m.Called(ctx, email, name, token)
	return args.Error(0)
}

func (m *MockNotifier) SendRecovery(ctx context.Context, email, name, token string) error {
	args := m.Called(ctx, email, name, token)
	return args.Error(0)
}

// capturingNotifier records dispatched emails without testify expectations,
// for flows where delivery is fire-and-forget.
type capturingNotifier struct {
	mu         sync.Mutex
	verifyTo   []string
	recoverTo  []string
	lastTokens map[string]string
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{lastTokens: map[string]string{}}
}

func (c *capturingNotifier) SendVerification(ctx context.Context, email, name, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verifyTo = append(c.verifyTo, email)
	c.lastTokens["verify:"+email] = token
	return nil
}

func (c *capturingNotifier) SendRecovery(ctx context.Context, email, name, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recoverTo = append(c.recoverTo, email)
	c.lastTokens["recover:"+email] = token
	return nil
}

func (c *capturingNotifier) recoveryToken(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTokens["recover:"+email]
}

func (c *capturingNotifier) verificationToken(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTokens["verify:"+email]
}

func (c *capturingNotifier) recoveryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recoverTo)
}

func (c *capturingNotifier) verificationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.verifyTo)
}

// MockTokenIssuer implements identity.TokenIssuer
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(subject string) (string, error) {
	args := m.Called(subject)
	return args.String(0), args.Error(1)
}

// Package servicetest provides in-memory stores for exercising services and handlers in tests.
package servicetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/pkg/assistant"
)

// Clock is a settable clock shared by the services under test.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Users is an in-memory UserStore.
type Users struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	expires int
}

func NewUsers() *Users { return &Users{byID: map[string]*domain.User{}} }

func (m *Users) Put(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
}

func (m *Users) Get(id string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

// Expires counts the lazy corrections made through ExpirePremium.
func (m *Users) Expires() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expires
}

func (m *Users) Create(ctx context.Context, u *domain.User) error {
	m.Put(u)
	return nil
}

func (m *Users) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Users) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return m.Get(id), nil
}

func (m *Users) FindByGoogleSub(ctx context.Context, sub string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.GoogleSub != nil && *u.GoogleSub == sub {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Users) LinkGoogleSub(ctx context.Context, id, sub string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.GoogleSub = &sub
	}
	return nil
}

func (m *Users) Exists(ctx context.Context, email string) (bool, error) {
	u, _ := m.FindByEmail(ctx, email)
	return u != nil, nil
}

func (m *Users) ListAll(ctx context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.User{}
	for _, u := range m.byID {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Users) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *Users) ExpirePremium(ctx context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.PremiumLapsed(now) {
		return false, nil
	}
	u.IsPremium = false
	m.expires++
	return true, nil
}

func (m *Users) ExpireAllPremium(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.byID {
		if u.PremiumLapsed(now) {
			u.IsPremium = false
			n++
		}
	}
	return n, nil
}

// Readings is an in-memory ReadingStore; deleting a reading cascades to its messages
// but leaves the owner's last reading time in place.
type Readings struct {
	mu       sync.Mutex
	readings map[string]*domain.Reading
	messages []*domain.ChatMessage
	last     map[string]time.Time
}

func NewReadings() *Readings {
	return &Readings{readings: map[string]*domain.Reading{}, last: map[string]time.Time{}}
}

func (m *Readings) Create(ctx context.Context, rd *domain.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rd
	m.readings[rd.ID] = &cp
	if rd.CreatedAt.After(m.last[rd.UserID]) {
		m.last[rd.UserID] = rd.CreatedAt
	}
	return nil
}

func (m *Readings) FindByID(ctx context.Context, id, userID string) (*domain.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rd, ok := m.readings[id]
	if !ok || rd.UserID != userID {
		return nil, nil
	}
	cp := *rd
	return &cp, nil
}

func (m *Readings) ListByUser(ctx context.Context, userID string) ([]*domain.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Reading{}
	for _, rd := range m.readings {
		if rd.UserID == userID {
			cp := *rd
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Readings) Delete(ctx context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rd, ok := m.readings[id]
	if !ok || rd.UserID != userID {
		return false, nil
	}
	delete(m.readings, id)
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.ReadingID != id {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	return true, nil
}

func (m *Readings) LatestByUser(ctx context.Context, userID string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.last[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Readings) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.readings[msg.ReadingID]; !ok {
		return errors.New("foreign key violation")
	}
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *Readings) ListMessages(ctx context.Context, readingID string) ([]*domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.ChatMessage{}
	for _, msg := range m.messages {
		if msg.ReadingID == readingID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Readings) LatestUserMessage(ctx context.Context, readingID string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *time.Time
	for _, msg := range m.messages {
		if msg.ReadingID == readingID && msg.IsUser && (latest == nil || msg.CreatedAt.After(*latest)) {
			t := msg.CreatedAt
			latest = &t
		}
	}
	return latest, nil
}

func (m *Readings) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Payments is an in-memory PaymentStore. ApplySucceeded serialises like the row locks do.
type Payments struct {
	mu       sync.Mutex
	users    *Users
	payments map[string]*domain.Payment
}

func NewPayments(users *Users) *Payments {
	return &Payments{users: users, payments: map[string]*domain.Payment{}}
}

func (m *Payments) Create(ctx context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *Payments) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *Payments) ListByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Payment{}
	for _, p := range m.payments {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Payments) ListAll(ctx context.Context) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Payment{}
	for _, p := range m.payments {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Payments) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok && p.Status == domain.PaymentPending {
		p.Status = status
	}
	return nil
}

func (m *Payments) ApplySucceeded(ctx context.Context, id string, now time.Time) (*domain.Activation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound("payment not found")
	}
	if p.Status == domain.PaymentCanceled {
		return nil, domain.ErrConflict("payment was canceled")
	}
	u := m.users.Get(p.UserID)
	if u == nil {
		return nil, errors.New("user missing")
	}
	if p.ActivatedAt != nil {
		return &domain.Activation{Applied: false, UserID: u.ID, PremiumExpiry: u.PremiumExpiry}, nil
	}

	expiry := domain.ExtendPremium(now, u, p.SubscriptionType)
	u.IsPremium = true
	u.PremiumExpiry = &expiry
	m.users.Put(u)

	at := now
	p.Status = domain.PaymentSucceeded
	p.ActivatedAt = &at
	return &domain.Activation{Applied: true, UserID: u.ID, PremiumExpiry: &expiry}, nil
}

// Tickets is an in-memory TicketStore.
type Tickets struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func NewTickets() *Tickets { return &Tickets{tickets: map[string]*domain.Ticket{}} }

func (m *Tickets) Create(ctx context.Context, t *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tickets[t.ID] = &cp
	return nil
}

func (m *Tickets) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *Tickets) ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Ticket{}
	for _, t := range m.tickets {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Tickets) ListAll(ctx context.Context) ([]*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Ticket{}
	for _, t := range m.tickets {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Tickets) Update(ctx context.Context, t *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tickets[t.ID] = &cp
	return nil
}

// Events is an in-memory EventLog.
type Events struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewEvents() *Events { return &Events{seen: map[string]bool{}} }

func (m *Events) Seen(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[key]
}

func (m *Events) MarkProcessed(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *Events) Forget(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key)
	return nil
}

// Locker is an in-memory Locker.
type Locker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocker() *Locker { return &Locker{held: map[string]bool{}} }

func (m *Locker) Held(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[name]
}

// Hold takes the lock as another instance would.
func (m *Locker) Hold(name string) {
	m.mu.Lock()
	m.held[name] = true
	m.mu.Unlock()
}

func (m *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[name] {
		return false, nil
	}
	m.held[name] = true
	return true, nil
}

func (m *Locker) Unlock(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, name)
	return nil
}

// Completer returns a canned reply or error and records the prompts it saw.
type Completer struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	prompts [][]assistant.Message
}

func (c *Completer) Complete(ctx context.Context, messages []assistant.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, messages)
	if c.Err != nil {
		return "", c.Err
	}
	return c.Reply, nil
}

// Prompts returns every message list passed to Complete so far.
func (c *Completer) Prompts() [][]assistant.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]assistant.Message(nil), c.prompts...)
}


package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"eventmanager/internal/clock"
	"eventmanager/internal/domain"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEventRepo is an in-memory EventRepository for tests.
type fakeEventRepo struct {
	byID   map[int64]*domain.Event
	nextID int64
	err    error // if set, Create returns this error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{byID: make(map[int64]*domain.Event), nextID: 1}
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	if f.err != nil {
		return f.err
	}
	e.ID = f.nextID
	f.nextID++
	cp := *e
	f.byID[e.ID] = &cp
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	if e, ok := f.byID[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Event, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeEventRepo) List(ctx context.Context, params domain.PaginationParams) ([]*domain.Event, int, error) {
	all, _ := f.ListAll(ctx)
	start := params.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + params.Limit(len(all))
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (f *fakeEventRepo) ListAll(ctx context.Context) ([]*domain.Event, error) {
	out := make([]*domain.Event, 0, len(f.byID))
	for _, e := range f.byID {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEventRepo) Update(ctx context.Context, e *domain.Event) error {
	if _, ok := f.byID[e.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *e
	f.byID[e.ID] = &cp
	return nil
}

func (f *fakeEventRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeParticipantRepo struct {
	byID       map[int64]*domain.Participant
	nextID     int64
	checkInErr error
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{byID: make(map[int64]*domain.Participant), nextID: 1}
}

func (f *fakeParticipantRepo) Create(ctx context.Context, p *domain.Participant) error {
	p.ID = f.nextID
	f.nextID++
	cp := *p
	f.byID[p.ID] = &cp
	return nil
}

func (f *fakeParticipantRepo) GetByID(ctx context.Context, eventID, id int64) (*domain.Participant, error) {
	if p, ok := f.byID[id]; ok && p.EventID == eventID {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeParticipantRepo) ListByEvent(ctx context.Context, eventID int64) ([]*domain.Participant, error) {
	var out []*domain.Participant
	for _, p := range f.byID {
		if p.EventID == eventID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeParticipantRepo) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	list, _ := f.ListByEvent(ctx, eventID)
	return len(list), nil
}

func (f *fakeParticipantRepo) EmailExists(ctx context.Context, eventID int64, email string) (bool, error) {
	for _, p := range f.byID {
		if p.EventID == eventID && strings.EqualFold(p.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeParticipantRepo) SetCheckedIn(ctx context.Context, eventID, id int64, checkedIn bool) error {
	if f.checkInErr != nil {
		return f.checkInErr
	}
	p, ok := f.byID[id]
	if !ok || p.EventID != eventID {
		return domain.ErrNotFound
	}
	p.CheckedIn = checkedIn
	return nil
}

func (f *fakeParticipantRepo) Delete(ctx context.Context, eventID, id int64) error {
	if p, ok := f.byID[id]; !ok || p.EventID != eventID {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeParticipantRepo) DeleteByEvent(ctx context.Context, eventID int64) error {
	for id, p := range f.byID {
		if p.EventID == eventID {
			delete(f.byID, id)
		}
	}
	return nil
}

type fakeWaitlistRepo struct {
	entries []*domain.WaitlistEntry
	nextID  int64
}

func newFakeWaitlistRepo() *fakeWaitlistRepo {
	return &fakeWaitlistRepo{nextID: 1}
}

func (f *fakeWaitlistRepo) Add(ctx context.Context, e *domain.WaitlistEntry) error {
	e.ID = f.nextID
	f.nextID++
	cp := *e
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeWaitlistRepo) ListByEvent(ctx context.Context, eventID int64) ([]*domain.WaitlistEntry, error) {
	var out []*domain.WaitlistEntry
	for _, e := range f.entries {
		if e.EventID == eventID {
			cp := *e
			cp.Position = len(out) + 1
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeWaitlistRepo) Head(ctx context.Context, eventID int64) (*domain.WaitlistEntry, error) {
	list, _ := f.ListByEvent(ctx, eventID)
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return list[0], nil
}

func (f *fakeWaitlistRepo) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	list, _ := f.ListByEvent(ctx, eventID)
	return len(list), nil
}

func (f *fakeWaitlistRepo) EmailExists(ctx context.Context, eventID int64, email string) (bool, error) {
	for _, e := range f.entries {
		if e.EventID == eventID && strings.EqualFold(e.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWaitlistRepo) Remove(ctx context.Context, eventID, id int64) error {
	for i, e := range f.entries {
		if e.ID == id && e.EventID == eventID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeWaitlistRepo) DeleteByEvent(ctx context.Context, eventID int64) error {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.EventID != eventID {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

// fakeTx runs fn directly and counts calls.
type fakeTx struct {
	calls int
}

func (t *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type published struct {
	Topic   string
	Key     string
	Payload any
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{Topic: topic, Key: key, Payload: payload})
	return nil
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	for i, m := range p.sent {
		out[i] = m.Topic
	}
	return out
}

type fakeIndexer struct {
	indexed []int64
	deleted []int64
	bulk    int
}

func (f *fakeIndexer) Index(ctx context.Context, e *domain.Event) error {
	f.indexed = append(f.indexed, e.ID)
	return nil
}

func (f *fakeIndexer) BulkIndex(ctx context.Context, events []*domain.Event) (int, error) {
	f.bulk += len(events)
	return len(events), nil
}

func (f *fakeIndexer) Delete(ctx context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeAudit struct {
	entries []domain.AuditEntry
	err     error
}

func (f *fakeAudit) Log(ctx context.Context, entry domain.AuditEntry) (*domain.AuditLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.entries = append(f.entries, entry)
	return &domain.AuditLog{ID: int64(len(f.entries)), AuditEntry: entry}, nil
}

func (f *fakeAudit) Verify(ctx context.Context, startID, endID *int64) (*domain.ChainVerification, error) {
	return &domain.ChainVerification{Valid: true}, nil
}

func (f *fakeAudit) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	return nil, nil
}

func (f *fakeAudit) actions() []domain.AuditAction {
	out := make([]domain.AuditAction, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Action
	}
	return out
}

type fakeEmail struct {
	confirmed []string
	promoted  []string
	err       error
}

func (f *fakeEmail) SendRegistrationConfirmed(ctx context.Context, data *domain.RegistrationEmailData) error {
	if f.err != nil {
		return f.err
	}
	f.confirmed = append(f.confirmed, data.Email)
	return nil
}

func (f *fakeEmail) SendWaitlistPromoted(ctx context.Context, data *domain.RegistrationEmailData) error {
	if f.err != nil {
		return f.err
	}
	f.promoted = append(f.promoted, data.Email)
	return nil
}

type fakeQueue struct {
	ops []domain.WriteOp
	err error
}

func (q *fakeQueue) Enqueue(ctx context.Context, op domain.WriteOp) error {
	if q.err != nil {
		return q.err
	}
	q.ops = append(q.ops, op)
	return nil
}

func (q *fakeQueue) Drain(ctx context.Context, max int, fn func(ctx context.Context, op domain.WriteOp) error) (int, error) {
	return 0, errors.New("not implemented")
}

// fixture wires every fake into Deps.
type fixture struct {
	events       *fakeEventRepo
	participants *fakeParticipantRepo
	waitlist     *fakeWaitlistRepo
	tx           *fakeTx
	publisher    *fakePublisher
	indexer      *fakeIndexer
	audit        *fakeAudit
	email        *fakeEmail
	queue        *fakeQueue
	clock        *clock.Fixed
}

func newFixture() *fixture {
	return &fixture{
		events:       newFakeEventRepo(),
		participants: newFakeParticipantRepo(),
		waitlist:     newFakeWaitlistRepo(),
		tx:           &fakeTx{},
		publisher:    &fakePublisher{},
		indexer:      &fakeIndexer{},
		audit:        &fakeAudit{},
		email:        &fakeEmail{},
		clock:        clock.NewFixed(testNow),
	}
}

func (f *fixture) deps() Deps {
	d := Deps{
		Events:       f.events,
		Participants: f.participants,
		Waitlist:     f.waitlist,
		Tx:           f.tx,
		Publisher:    f.publisher,
		Indexer:      f.indexer,
		Audit:        f.audit,
		Email:        f.email,
		Clock:        f.clock,
		Logger:       discardLogger(),
		Timeout:      time.Second,
	}
	if f.queue != nil {
		d.CheckIns = f.queue
	}
	return d
}

// seedEvent stores an event with the given seats and n participants.
func (f *fixture) seedEvent(seats, n int) *domain.Event {
	e := domain.NewEvent("GopherCon", "", "Berlin", "Conference", testNow.AddDate(0, 1, 0), seats, testNow)
	_ = f.events.Create(context.Background(), e)
	for i := 0; i < n; i++ {
		_ = f.participants.Create(context.Background(), &domain.Participant{
			EventID: e.ID, Name: "P", Email: string(rune('a'+i)) + "@x.io", CreatedAt: testNow,
		})
	}
	return e
}

package lifecycle_test

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/commissions-backend/internal/domain/entity"
	"github.com/ignatzorin/commissions-backend/internal/domain/repository"
	"github.com/ignatzorin/commissions-backend/internal/domain/valueobject"
	"github.com/ignatzorin/commissions-backend/internal/pkg/apperror"
	"github.com/ignatzorin/commissions-backend/internal/usecase/lifecycle"
)

// memoryDB хранит копии сущностей и повторяет условные обновления хранилища.
type memoryDB struct {
	mu            sync.Mutex
	workRequests  map[uuid.UUID]entity.WorkRequest
	applications  map[uuid.UUID]entity.Application
	deliveries    map[uuid.UUID]entity.Delivery
	cancellations map[uuid.UUID]entity.CancellationRequest
	history       []entity.StatusChange
	effects       []entity.Effect

	// txMu выполняет транзакции по одной, как блокировки строк в Postgres.
	txMu         sync.Mutex
	lockedLoads  map[uuid.UUID]int
	rejectOthers error
}

// memorySnapshot - копия состояния для отката транзакции.
type memorySnapshot struct {
	workRequests  map[uuid.UUID]entity.WorkRequest
	applications  map[uuid.UUID]entity.Application
	deliveries    map[uuid.UUID]entity.Delivery
	cancellations map[uuid.UUID]entity.CancellationRequest
	history       []entity.StatusChange
	effects       []entity.Effect
}

func (db *memoryDB) snapshot() memorySnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return memorySnapshot{
		workRequests:  copyMap(db.workRequests),
		applications:  copyMap(db.applications),
		deliveries:    copyMap(db.deliveries),
		cancellations: copyMap(db.cancellations),
		history:       append([]entity.StatusChange(nil), db.history...),
		effects:       append([]entity.Effect(nil), db.effects...),
	}
}

func (db *memoryDB) restore(s memorySnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.workRequests = s.workRequests
	db.applications = s.applications
	db.deliveries = s.deliveries
	db.cancellations = s.cancellations
	db.history = s.history
	db.effects = s.effects
}

func copyMap[V any](in map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		workRequests:  make(map[uuid.UUID]entity.WorkRequest),
		applications:  make(map[uuid.UUID]entity.Application),
		deliveries:    make(map[uuid.UUID]entity.Delivery),
		cancellations: make(map[uuid.UUID]entity.CancellationRequest),
		lockedLoads:   make(map[uuid.UUID]int),
	}
}

func (db *memoryDB) store() lifecycle.Store {
	return lifecycle.Store{
		Tx:            memoryTx{db},
		WorkRequests:  &memoryWorkRequests{db},
		Applications:  &memoryApplications{db},
		Deliveries:    &memoryDeliveries{db},
		Cancellations: &memoryCancellations{db},
		History:       &memoryHistory{db},
		Effects:       &memoryEffects{db},
	}
}

func (db *memoryDB) workRequest(id uuid.UUID) entity.WorkRequest {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.workRequests[id]
}

func (db *memoryDB) cancellation(id uuid.UUID) entity.CancellationRequest {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.cancellations[id]
}

func (db *memoryDB) delivery(id uuid.UUID) entity.Delivery {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.deliveries[id]
}

func (db *memoryDB) effectsOf(kind entity.EffectKind) []entity.Effect {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []entity.Effect
	for _, e := range db.effects {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (db *memoryDB) setCancellationCreatedAt(id uuid.UUID, at time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := db.cancellations[id]
	c.CreatedAt = at
	db.cancellations[id] = c
}

func (db *memoryDB) effectCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.effects)
}

func (db *memoryDB) lockedLoadsOf(id uuid.UUID) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.lockedLoads[id]
}

func (db *memoryDB) historyOf(id uuid.UUID) []entity.StatusChange {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []entity.StatusChange
	for _, h := range db.history {
		if h.WorkRequestID == id {
			out = append(out, h)
		}
	}
	return out
}

type txKey struct{}

// memoryTx откатывает memoryDB к снимку, если fn вернула ошибку.
type memoryTx struct{ db *memoryDB }

func (t memoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	before := t.db.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.db.restore(before)
		return err
	}
	return nil
}

type memoryWorkRequests struct{ db *memoryDB }

func (r *memoryWorkRequests) Create(ctx context.Context, wr *entity.WorkRequest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.workRequests[wr.ID] = *wr
	return nil
}

func (r *memoryWorkRequests) FindByID(ctx context.Context, id uuid.UUID) (*entity.WorkRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	wr, ok := r.db.workRequests[id]
	if !ok {
		return nil, nil
	}
	return &wr, nil
}

func (r *memoryWorkRequests) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.WorkRequest, error) {
	r.db.mu.Lock()
	r.db.lockedLoads[id]++
	r.db.mu.Unlock()
	return r.FindByID(ctx, id)
}

func (r *memoryWorkRequests) Transition(ctx context.Context, wr *entity.WorkRequest, from valueobject.WorkRequestStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.workRequests[wr.ID]
	if !ok || stored.Status != from {
		return apperror.ErrConcurrentUpdate
	}
	next := *wr
	if stored.FinalPrice != nil {
		next.FinalPrice = stored.FinalPrice
	}
	r.db.workRequests[wr.ID] = next
	return nil
}

func (r *memoryWorkRequests) List(ctx context.Context, filter repository.WorkRequestFilter) ([]*entity.WorkRequest, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.WorkRequest
	for _, wr := range r.db.workRequests {
		wr := wr
		if filter.ParticipantID != nil && wr.RoleOf(*filter.ParticipantID) == valueobject.RoleNone {
			continue
		}
		if filter.OnlyOpen && wr.Status != valueobject.WorkRequestStatusOpen {
			continue
		}
		out = append(out, &wr)
	}
	return out, len(out), nil
}

type memoryApplications struct{ db *memoryDB }

func (r *memoryApplications) Create(ctx context.Context, app *entity.Application) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.applications {
		if existing.WorkRequestID == app.WorkRequestID && existing.ApplicantID == app.ApplicantID {
			return apperror.Conflict("отклик уже отправлен")
		}
	}
	r.db.applications[app.ID] = *app
	return nil
}

func (r *memoryApplications) FindByID(ctx context.Context, id uuid.UUID) (*entity.Application, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	app, ok := r.db.applications[id]
	if !ok {
		return nil, nil
	}
	return &app, nil
}

func (r *memoryApplications) Accept(ctx context.Context, app *entity.Application) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored := r.db.applications[app.ID]
	if stored.Status != valueobject.ApplicationStatusPending {
		return apperror.ErrConcurrentUpdate
	}
	r.db.applications[app.ID] = *app
	return nil
}

func (r *memoryApplications) RejectOtherPending(ctx context.Context, workRequestID, acceptedID uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.rejectOthers != nil {
		return 0, r.db.rejectOthers
	}
	var n int64
	for id, app := range r.db.applications {
		if app.WorkRequestID == workRequestID && id != acceptedID && app.Status == valueobject.ApplicationStatusPending {
			app.Status = valueobject.ApplicationStatusRejected
			r.db.applications[id] = app
			n++
		}
	}
	return n, nil
}

func (r *memoryApplications) ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.Application, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Application
	for _, app := range r.db.applications {
		app := app
		if app.WorkRequestID == workRequestID {
			out = append(out, &app)
		}
	}
	return out, nil
}

func (r *memoryApplications) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]*entity.Application, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Application
	for _, app := range r.db.applications {
		app := app
		if app.ApplicantID == applicantID {
			out = append(out, &app)
		}
	}
	return out, nil
}

type memoryDeliveries struct{ db *memoryDB }

func (r *memoryDeliveries) Create(ctx context.Context, d *entity.Delivery) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.deliveries[d.ID] = *d
	return nil
}

func (r *memoryDeliveries) FindByID(ctx context.Context, id uuid.UUID) (*entity.Delivery, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.deliveries[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *memoryDeliveries) Resolve(ctx context.Context, d *entity.Delivery) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.deliveries[d.ID].Status != valueobject.DeliveryStatusPending {
		return apperror.ErrConcurrentUpdate
	}
	r.db.deliveries[d.ID] = *d
	return nil
}

func (r *memoryDeliveries) ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.Delivery, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Delivery
	for _, d := range r.db.deliveries {
		d := d
		if d.WorkRequestID == workRequestID {
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memoryCancellations struct{ db *memoryDB }

func (r *memoryCancellations) Create(ctx context.Context, c *entity.CancellationRequest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.cancellations {
		if existing.WorkRequestID == c.WorkRequestID && existing.Status == valueobject.CancellationStatusPending {
			return apperror.ErrPendingCancellation
		}
	}
	r.db.cancellations[c.ID] = *c
	return nil
}

func (r *memoryCancellations) FindByID(ctx context.Context, id uuid.UUID) (*entity.CancellationRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.cancellations[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memoryCancellations) FindPending(ctx context.Context, workRequestID uuid.UUID) (*entity.CancellationRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.cancellations {
		c := c
		if c.WorkRequestID == workRequestID && c.Status == valueobject.CancellationStatusPending {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memoryCancellations) Resolve(ctx context.Context, c *entity.CancellationRequest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.cancellations[c.ID].Status != valueobject.CancellationStatusPending {
		return apperror.ErrConcurrentUpdate
	}
	r.db.cancellations[c.ID] = *c
	return nil
}

func (r *memoryCancellations) ListExpired(ctx context.Context, createdBefore time.Time, after *repository.ExpiredCursor, limit int) ([]*entity.CancellationRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.CancellationRequest
	for _, c := range r.db.cancellations {
		c := c
		if c.Status != valueobject.CancellationStatusPending || c.CreatedAt.After(createdBefore) {
			continue
		}
		if after != nil && !cursorLess(after.CreatedAt, after.ID, c.CreatedAt, c.ID) {
			continue
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return cursorLess(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryCancellations) ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.CancellationRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.CancellationRequest
	for _, c := range r.db.cancellations {
		c := c
		if c.WorkRequestID == workRequestID {
			out = append(out, &c)
		}
	}
	return out, nil
}

type memoryHistory struct{ db *memoryDB }

func (r *memoryHistory) Record(ctx context.Context, change *entity.StatusChange) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.history = append(r.db.history, *change)
	return nil
}

func (r *memoryHistory) ListByWorkRequest(ctx context.Context, workRequestID uuid.UUID) ([]*entity.StatusChange, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.StatusChange
	for _, h := range r.db.history {
		h := h
		if h.WorkRequestID == workRequestID {
			out = append(out, &h)
		}
	}
	return out, nil
}

type memoryEffects struct{ db *memoryDB }

func (r *memoryEffects) Enqueue(ctx context.Context, effects []entity.Effect) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.effects = append(r.db.effects, effects...)
	return nil
}

// fakePayments - удержание без реального баланса, declineAll имитирует нехватку средств.
type fakePayments struct {
	mu         sync.Mutex
	captures   int
	declineAll bool
}

func (p *fakePayments) Capture(ctx context.Context, workRequestID, payerID uuid.UUID, amount int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.declineAll {
		return "", apperror.ErrInsufficientFunds
	}
	p.captures++
	return "escrow-" + workRequestID.String(), nil
}

// recordingDispatcher запоминает эффекты и может отказывать по виду эффекта.
type recordingDispatcher struct {
	mu         sync.Mutex
	dispatched []entity.Effect
	failKinds  map[entity.EffectKind]bool
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{failKinds: make(map[entity.EffectKind]bool)}
}

func (d *recordingDispatcher) DispatchNow(ctx context.Context, effects []entity.Effect) []entity.EffectFailure {
	d.mu.Lock()
	defer d.mu.Unlock()
	var failures []entity.EffectFailure
	for _, e := range effects {
		d.dispatched = append(d.dispatched, e)
		if d.failKinds[e.Kind] {
			failures = append(failures, entity.EffectFailure{EffectID: e.ID, Kind: e.Kind, Err: errors.New("gateway unavailable")})
		}
	}
	return failures
}

func (d *recordingDispatcher) count(kind entity.EffectKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.dispatched {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (d *recordingDispatcher) notificationsTo(recipient uuid.UUID) []entity.Effect {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []entity.Effect
	for _, e := range d.dispatched {
		if e.Kind == entity.EffectNotify && e.Payload.RecipientID == recipient {
			out = append(out, e)
		}
	}
	return out
}

// cursorLess сравнивает пары (created_at, id) так же, как Postgres.
func cursorLess(at time.Time, id uuid.UUID, otherAt time.Time, otherID uuid.UUID) bool {
	if !at.Equal(otherAt) {
		return at.Before(otherAt)
	}
	return bytes.Compare(id[:], otherID[:]) < 0
}

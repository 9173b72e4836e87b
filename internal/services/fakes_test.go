package services_test

import (
	"sync"
	"time"

	"cryoclean_backend/internal/models"
	"cryoclean_backend/internal/repositories"
)

// memStore backs the fake repositories with in-memory state. fakeTxManager
// snapshots it before each transaction body and restores the snapshot when
// the body fails, which mirrors a rollback. The single mutex stands in for
// the user-row lock: every transaction is serialized against every other,
// so the concurrency tests see the same interleavings a Postgres FOR UPDATE
// lock would allow.
type memStore struct {
	mu           sync.Mutex
	users        map[int64]*models.User
	appointments map[int64]*models.Appointment
	transactions []models.PointsTransaction
	packs        map[int64]*models.Pack
	purchases    map[int64]*models.Purchase
	nextID       int64
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[int64]*models.User),
		appointments: make(map[int64]*models.Appointment),
		packs:        make(map[int64]*models.Pack),
		purchases:    make(map[int64]*models.Purchase),
		nextID:       1,
	}
}

func (s *memStore) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *memStore) addUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.allocID()
	}
	s.users[u.ID] = &u
	return &u
}

func (s *memStore) addAppointment(a models.Appointment) *models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.allocID()
	}
	s.appointments[a.ID] = &a
	return &a
}

func (s *memStore) addPack(p models.Pack) *models.Pack {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.allocID()
	}
	s.packs[p.ID] = &p
	return &p
}

func (s *memStore) addPurchase(p models.Purchase) *models.Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.allocID()
	}
	s.purchases[p.ID] = &p
	return &p
}

func (s *memStore) balance(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID].TotalPoints
}

func (s *memStore) transactionsFor(userID int64) []models.PointsTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PointsTransaction
	for _, txn := range s.transactions {
		if txn.UserID == userID {
			out = append(out, txn)
		}
	}
	return out
}

type storeSnapshot struct {
	users        map[int64]models.User
	appointments map[int64]models.Appointment
	transactions []models.PointsTransaction
	packs        map[int64]models.Pack
	purchases    map[int64]models.Purchase
	nextID       int64
}

func (s *memStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		users:        make(map[int64]models.User, len(s.users)),
		appointments: make(map[int64]models.Appointment, len(s.appointments)),
		transactions: append([]models.PointsTransaction(nil), s.transactions...),
		packs:        make(map[int64]models.Pack, len(s.packs)),
		purchases:    make(map[int64]models.Purchase, len(s.purchases)),
		nextID:       s.nextID,
	}
	for id, u := range s.users {
		snap.users[id] = *u
	}
	for id, a := range s.appointments {
		snap.appointments[id] = *a
	}
	for id, p := range s.packs {
		snap.packs[id] = *p
	}
	for id, p := range s.purchases {
		snap.purchases[id] = *p
	}
	return snap
}

func (s *memStore) restore(snap storeSnapshot) {
	s.users = make(map[int64]*models.User, len(snap.users))
	for id := range snap.users {
		u := snap.users[id]
		s.users[id] = &u
	}
	s.appointments = make(map[int64]*models.Appointment, len(snap.appointments))
	for id := range snap.appointments {
		a := snap.appointments[id]
		s.appointments[id] = &a
	}
	s.transactions = append([]models.PointsTransaction(nil), snap.transactions...)
	s.packs = make(map[int64]*models.Pack, len(snap.packs))
	for id := range snap.packs {
		p := snap.packs[id]
		s.packs[id] = &p
	}
	s.purchases = make(map[int64]*models.Purchase, len(snap.purchases))
	for id := range snap.purchases {
		p := snap.purchases[id]
		s.purchases[id] = &p
	}
	s.nextID = snap.nextID
}

// fakeTxManager serializes transaction bodies and rolls the store back on
// failure.
type fakeTxManager struct {
	store *memStore
}

func (m *fakeTxManager) WithinTx(fn func(tx repositories.SQLExecutor) error) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	snap := m.store.snapshot()
	if err := fn(nil); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// flakyTxManager fails selected WithinTx calls (1-based call number) without
// running the body, and delegates the rest. Models transient commit failures.
type flakyTxManager struct {
	inner  repositories.TxManager
	calls  int
	failOn map[int]error
}

func (m *flakyTxManager) WithinTx(fn func(tx repositories.SQLExecutor) error) error {
	m.calls++
	if err, ok := m.failOn[m.calls]; ok {
		return err
	}
	return m.inner.WithinTx(fn)
}

// --- fake user repository ---
//
// Methods that take an executor run inside a fakeTxManager transaction and
// must not lock; the rest lock for themselves.

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) CreateUser(_ repositories.SQLExecutor, user *models.User) (int64, error) {
	for _, existing := range r.store.users {
		if existing.Email == user.Email {
			return 0, repositories.ErrDuplicateKey
		}
	}
	user.ID = r.store.allocID()
	u := *user
	r.store.users[user.ID] = &u
	return user.ID, nil
}

func (r *fakeUserRepo) GetUserByID(id int64) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetUserByEmail(email string) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) GetUsers(page, pageSize int) ([]models.User, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var users []models.User
	for _, u := range r.store.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (r *fakeUserRepo) GetUserForUpdate(_ repositories.SQLExecutor, id int64) (*models.User, error) {
	u, ok := r.store.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) UpdateBalance(_ repositories.SQLExecutor, id int64, newBalance int) error {
	u, ok := r.store.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if newBalance < 0 {
		return repositories.ErrCheckViolation
	}
	u.TotalPoints = newBalance
	return nil
}

func (r *fakeUserRepo) SetActive(_ repositories.SQLExecutor, id int64, active bool) error {
	u, ok := r.store.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.IsActive = active
	return nil
}

// --- fake appointment repository ---

type fakeAppointmentRepo struct {
	store *memStore
}

func isActiveStatus(status string) bool {
	for _, s := range models.ActiveAppointmentStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// CreateAppointment enforces the same uniqueness rule as the partial index
// on (appointment_date, time_slot): at most one non-terminal appointment per
// slot.
func (r *fakeAppointmentRepo) CreateAppointment(_ repositories.SQLExecutor, appt *models.Appointment) (int64, error) {
	for _, existing := range r.store.appointments {
		if isActiveStatus(existing.Status) &&
			dateKey(existing.AppointmentDate) == dateKey(appt.AppointmentDate) &&
			existing.TimeSlot == appt.TimeSlot {
			return 0, repositories.ErrDuplicateKey
		}
	}
	appt.ID = r.store.allocID()
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	copied := *appt
	r.store.appointments[appt.ID] = &copied
	return appt.ID, nil
}

func (r *fakeAppointmentRepo) GetAppointmentByID(id int64) (*models.Appointment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.appointments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAppointmentRepo) GetAppointmentForUpdate(_ repositories.SQLExecutor, id int64) (*models.Appointment, error) {
	a, ok := r.store.appointments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAppointmentRepo) GetAppointmentsByUser(userID int64) ([]models.Appointment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Appointment
	for _, a := range r.store.appointments {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) GetAppointments(filters models.AppointmentFilters) ([]models.Appointment, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Appointment
	for _, a := range r.store.appointments {
		if filters.UserID != nil && a.UserID != *filters.UserID {
			continue
		}
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		if filters.ServiceType != nil && a.ServiceType != *filters.ServiceType {
			continue
		}
		if filters.Date != nil && dateKey(a.AppointmentDate) != dateKey(*filters.Date) {
			continue
		}
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (r *fakeAppointmentRepo) CountActiveByUser(_ repositories.SQLExecutor, userID int64) (int, error) {
	count := 0
	for _, a := range r.store.appointments {
		if a.UserID == userID && isActiveStatus(a.Status) {
			count++
		}
	}
	return count, nil
}

func (r *fakeAppointmentRepo) ListBookedSlots(date time.Time) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var slots []string
	for _, a := range r.store.appointments {
		if isActiveStatus(a.Status) && dateKey(a.AppointmentDate) == dateKey(date) {
			slots = append(slots, a.TimeSlot)
		}
	}
	return slots, nil
}

func (r *fakeAppointmentRepo) UpdateStatus(_ repositories.SQLExecutor, id int64, status string) error {
	a, ok := r.store.appointments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}

func (r *fakeAppointmentRepo) CancelAppointment(_ repositories.SQLExecutor, id int64, reason *string, cancelledBy int64) error {
	a, ok := r.store.appointments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	a.Status = models.AppointmentStatusCancelled
	a.CancellationReason = reason
	a.CancelledBy = &cancelledBy
	a.UpdatedAt = time.Now()
	return nil
}

// --- fake points repository ---

type fakePointsRepo struct {
	store *memStore
}

func (r *fakePointsRepo) CreateTransaction(_ repositories.SQLExecutor, txn *models.PointsTransaction) (int64, error) {
	txn.ID = r.store.allocID()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	r.store.transactions = append(r.store.transactions, *txn)
	return txn.ID, nil
}

func (r *fakePointsRepo) GetTransactionsByUser(userID int64, page, pageSize int) ([]models.PointsTransaction, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var all []models.PointsTransaction
	for _, txn := range r.store.transactions {
		if txn.UserID == userID {
			all = append(all, txn)
		}
	}
	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return []models.PointsTransaction{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// --- fake pack repository ---

type fakePackRepo struct {
	store *memStore
}

func (r *fakePackRepo) CreatePack(_ repositories.SQLExecutor, pack *models.Pack) (int64, error) {
	pack.ID = r.store.allocID()
	copied := *pack
	r.store.packs[pack.ID] = &copied
	return pack.ID, nil
}

// GetPackByID is called both inside and outside transactions, so it does
// not take the store lock. The pack catalog never changes concurrently in
// these tests.
func (r *fakePackRepo) GetPackByID(id int64) (*models.Pack, error) {
	p, ok := r.store.packs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePackRepo) GetPacks(activeOnly bool) ([]models.Pack, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Pack
	for _, p := range r.store.packs {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePackRepo) UpdatePack(_ repositories.SQLExecutor, pack *models.Pack) error {
	if _, ok := r.store.packs[pack.ID]; !ok {
		return repositories.ErrNotFound
	}
	copied := *pack
	r.store.packs[pack.ID] = &copied
	return nil
}

func (r *fakePackRepo) SetPackActive(_ repositories.SQLExecutor, id int64, active bool) error {
	p, ok := r.store.packs[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.IsActive = active
	return nil
}

func (r *fakePackRepo) CreatePurchase(_ repositories.SQLExecutor, purchase *models.Purchase) (int64, error) {
	purchase.ID = r.store.allocID()
	copied := *purchase
	r.store.purchases[purchase.ID] = &copied
	return purchase.ID, nil
}

func (r *fakePackRepo) GetPurchaseByID(id int64) (*models.Purchase, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.purchases[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePackRepo) GetPurchaseForUpdate(_ repositories.SQLExecutor, id int64) (*models.Purchase, error) {
	p, ok := r.store.purchases[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePackRepo) GetPurchasesByUser(userID int64) ([]models.Purchase, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Purchase
	for _, p := range r.store.purchases {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePackRepo) SettlePurchase(_ repositories.SQLExecutor, id int64, status string, pointsCredited int, stripeSessionID *string) error {
	p, ok := r.store.purchases[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Status = status
	p.PointsCredited = pointsCredited
	if stripeSessionID != nil {
		p.StripeSessionID = stripeSessionID
	}
	p.UpdatedAt = time.Now()
	return nil
}

// Package memory is a process-local implementation of the stores, used for
// local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go-student-records/internal/auth"
	"go-student-records/internal/model"
)

type enrollmentKey struct {
	userID   int64
	courseID int64
}

// Store holds every table behind one lock.
type Store struct {
	mu          sync.RWMutex
	now         func() time.Time
	nextID      map[string]int64
	accounts    map[int64]model.Account
	users       map[int64]model.User
	courses     map[int64]model.Course
	enrollments map[enrollmentKey]time.Time
	audit       []model.AuditEntry
}

func New() *Store {
	return &Store{
		now:         time.Now,
		nextID:      map[string]int64{},
		accounts:    map[int64]model.Account{},
		users:       map[int64]model.User{},
		courses:     map[int64]model.Course{},
		enrollments: map[enrollmentKey]time.Time{},
	}
}

func (s *Store) Accounts() *Accounts { return &Accounts{s} }
func (s *Store) Users() *Users       { return &Users{s} }
func (s *Store) Courses() *Courses   { return &Courses{s} }
func (s *Store) Audit() *Audit       { return &Audit{s} }

func (s *Store) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

func page[T any](items []T, pageNum int, limit int) ([]T, model.Meta) {
	if pageNum < 1 {
		pageNum = 1
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	total := len(items)
	start := min((pageNum-1)*limit, total)
	end := min(start+limit, total)

	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, model.NewMeta(pageNum, limit, total)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (s *Store) enrolledCount(courseID int64) int {
	n := 0
	for key := range s.enrollments {
		if key.courseID == courseID {
			n++
		}
	}
	return n
}

func (s *Store) courseView(c model.Course) model.Course {
	c.Enrolled = s.enrolledCount(c.ID)
	return c
}

// Accounts is the in-memory credential store.
type Accounts struct{ s *Store }

func (a *Accounts) findByUsernameLocked(username string) (model.Account, bool) {
	username = strings.TrimSpace(username)
	for _, acc := range a.s.accounts {
		if strings.EqualFold(acc.Username, username) {
			return acc, true
		}
	}
	return model.Account{}, false
}

func (a *Accounts) FindByID(_ context.Context, id int64) (model.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	acc, ok := a.s.accounts[id]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return acc, nil
}

func (a *Accounts) FindByUsername(_ context.Context, username string) (model.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	acc, ok := a.findByUsernameLocked(username)
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return acc, nil
}

func (a *Accounts) ExistsByUsername(_ context.Context, username string) (bool, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	_, ok := a.findByUsernameLocked(username)
	return ok, nil
}

func (a *Accounts) CreateWithProfile(_ context.Context, username string, passwordHash string, role auth.Role) (model.Account, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if _, ok := a.findByUsernameLocked(username); ok {
		return model.Account{}, model.ErrUsernameTaken
	}

	now := a.s.now().UTC()
	user := model.User{ID: a.s.id("users"), CreatedAt: now, UpdatedAt: now}
	a.s.users[user.ID] = user

	userID := user.ID
	return a.insertLocked(username, passwordHash, role, &userID), nil
}

func (a *Accounts) Create(_ context.Context, username string, passwordHash string, role auth.Role) (model.Account, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if _, ok := a.findByUsernameLocked(username); ok {
		return model.Account{}, model.ErrUsernameTaken
	}
	return a.insertLocked(username, passwordHash, role, nil), nil
}

func (a *Accounts) insertLocked(username string, passwordHash string, role auth.Role, userID *int64) model.Account {
	now := a.s.now().UTC()
	acc := model.Account{
		ID:           a.s.id("accounts"),
		Username:     strings.TrimSpace(username),
		PasswordHash: passwordHash,
		Role:         role,
		UserID:       userID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	a.s.accounts[acc.ID] = acc
	return acc
}

func (a *Accounts) Update(_ context.Context, account model.Account) (model.Account, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	current, ok := a.s.accounts[account.ID]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}

	current.PasswordHash = account.PasswordHash
	current.Role = account.Role
	current.UpdatedAt = a.s.now().UTC()
	a.s.accounts[current.ID] = current
	return current, nil
}

func (a *Accounts) LinkUser(_ context.Context, accountID int64, userID int64) (model.Account, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	acc, ok := a.s.accounts[accountID]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	if _, ok := a.s.users[userID]; !ok {
		return model.Account{}, model.ErrUserNotFound
	}
	for _, other := range a.s.accounts {
		if other.ID != accountID && other.UserID != nil && *other.UserID == userID {
			return model.Account{}, model.ErrProfileLinked
		}
	}

	acc.UserID = &userID
	acc.UpdatedAt = a.s.now().UTC()
	a.s.accounts[accountID] = acc
	return acc, nil
}

func (a *Accounts) Delete(_ context.Context, id int64) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if _, ok := a.s.accounts[id]; !ok {
		return model.ErrAccountNotFound
	}
	delete(a.s.accounts, id)
	return nil
}

func (a *Accounts) DeleteAll(_ context.Context, keepID int64) (int64, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	var n int64
	for id := range a.s.accounts {
		if id == keepID {
			continue
		}
		delete(a.s.accounts, id)
		n++
	}
	return n, nil
}

func (a *Accounts) List(_ context.Context, pageNum int, limit int) ([]model.Account, model.Meta, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	all := make([]model.Account, 0, len(a.s.accounts))
	for _, id := range sortedKeys(a.s.accounts) {
		all = append(all, a.s.accounts[id])
	}
	items, meta := page(all, pageNum, limit)
	return items, meta, nil
}

// Users stores user profiles.
type Users struct{ s *Store }

func (u *Users) FindByID(_ context.Context, id int64) (model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	user, ok := u.s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return user, nil
}

func (u *Users) List(_ context.Context, pageNum int, limit int) ([]model.User, model.Meta, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	all := make([]model.User, 0, len(u.s.users))
	for _, id := range sortedKeys(u.s.users) {
		all = append(all, u.s.users[id])
	}
	items, meta := page(all, pageNum, limit)
	return items, meta, nil
}

func (u *Users) Create(_ context.Context, req model.UserRequest) (model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	now := u.s.now().UTC()
	user := model.User{
		ID:        u.s.id("users"),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	u.s.users[user.ID] = user
	return user, nil
}

func (u *Users) Update(_ context.Context, id int64, req model.UserRequest) (model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	user.FirstName = strings.TrimSpace(req.FirstName)
	user.LastName = strings.TrimSpace(req.LastName)
	user.Email = strings.TrimSpace(req.Email)
	user.UpdatedAt = u.s.now().UTC()
	u.s.users[id] = user
	return user, nil
}

func (u *Users) Delete(_ context.Context, id int64) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if _, ok := u.s.users[id]; !ok {
		return model.ErrUserNotFound
	}
	u.deleteLocked(id)
	return nil
}

func (u *Users) DeleteAll(_ context.Context) (int64, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	n := int64(len(u.s.users))
	for id := range u.s.users {
		u.deleteLocked(id)
	}
	return n, nil
}

// deleteLocked mirrors the foreign keys: enrollments cascade, account links are cleared.
func (u *Users) deleteLocked(id int64) {
	delete(u.s.users, id)
	for key := range u.s.enrollments {
		if key.userID == id {
			delete(u.s.enrollments, key)
		}
	}
	for accID, acc := range u.s.accounts {
		if acc.UserID != nil && *acc.UserID == id {
			acc.UserID = nil
			u.s.accounts[accID] = acc
		}
	}
}

func (u *Users) Courses(_ context.Context, userID int64) ([]model.Course, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	if _, ok := u.s.users[userID]; !ok {
		return nil, model.ErrUserNotFound
	}

	courses := make([]model.Course, 0)
	for _, id := range sortedKeys(u.s.courses) {
		if _, ok := u.s.enrollments[enrollmentKey{userID, id}]; ok {
			courses = append(courses, u.s.courseView(u.s.courses[id]))
		}
	}
	return courses, nil
}

// Courses stores courses and enrollments.
type Courses struct{ s *Store }

func (c *Courses) FindByID(_ context.Context, id int64) (model.Course, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	course, ok := c.s.courses[id]
	if !ok {
		return model.Course{}, model.ErrCourseNotFound
	}
	return c.s.courseView(course), nil
}

func (c *Courses) List(_ context.Context, pageNum int, limit int) ([]model.Course, model.Meta, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	all := make([]model.Course, 0, len(c.s.courses))
	for _, id := range sortedKeys(c.s.courses) {
		all = append(all, c.s.courseView(c.s.courses[id]))
	}
	items, meta := page(all, pageNum, limit)
	return items, meta, nil
}

func (c *Courses) Create(_ context.Context, req model.CourseRequest) (model.Course, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	now := c.s.now().UTC()
	course := model.Course{
		ID:          c.s.id("courses"),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		MaxCapacity: req.MaxCapacity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.s.courses[course.ID] = course
	return course, nil
}

func (c *Courses) Update(_ context.Context, id int64, req model.CourseRequest) (model.Course, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	course, ok := c.s.courses[id]
	if !ok {
		return model.Course{}, model.ErrCourseNotFound
	}
	if req.MaxCapacity < c.s.enrolledCount(id) {
		return model.Course{}, model.ErrCapacityTooLow
	}

	course.Name = strings.TrimSpace(req.Name)
	course.Description = strings.TrimSpace(req.Description)
	course.MaxCapacity = req.MaxCapacity
	course.UpdatedAt = c.s.now().UTC()
	c.s.courses[id] = course
	return c.s.courseView(course), nil
}

func (c *Courses) Delete(_ context.Context, id int64) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, ok := c.s.courses[id]; !ok {
		return model.ErrCourseNotFound
	}
	c.deleteLocked(id)
	return nil
}

func (c *Courses) DeleteAll(_ context.Context) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	n := int64(len(c.s.courses))
	for id := range c.s.courses {
		c.deleteLocked(id)
	}
	return n, nil
}

func (c *Courses) deleteLocked(id int64) {
	delete(c.s.courses, id)
	for key := range c.s.enrollments {
		if key.courseID == id {
			delete(c.s.enrollments, key)
		}
	}
}

func (c *Courses) Users(_ context.Context, courseID int64) ([]model.User, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	if _, ok := c.s.courses[courseID]; !ok {
		return nil, model.ErrCourseNotFound
	}

	users := make([]model.User, 0)
	for _, id := range sortedKeys(c.s.users) {
		if _, ok := c.s.enrollments[enrollmentKey{id, courseID}]; ok {
			users = append(users, c.s.users[id])
		}
	}
	return users, nil
}

func (c *Courses) AddUser(_ context.Context, courseID int64, userID int64) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	course, ok := c.s.courses[courseID]
	if !ok {
		return model.ErrCourseNotFound
	}
	if _, ok := c.s.users[userID]; !ok {
		return model.ErrUserNotFound
	}
	if c.s.enrolledCount(courseID) >= course.MaxCapacity {
		return model.ErrCourseFull
	}

	key := enrollmentKey{userID, courseID}
	if _, ok := c.s.enrollments[key]; ok {
		return model.ErrAlreadyEnrolled
	}
	c.s.enrollments[key] = c.s.now().UTC()
	return nil
}

func (c *Courses) RemoveUser(_ context.Context, courseID int64, userID int64) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, ok := c.s.courses[courseID]; !ok {
		return model.ErrCourseNotFound
	}

	key := enrollmentKey{userID, courseID}
	if _, ok := c.s.enrollments[key]; !ok {
		return model.ErrNotEnrolled
	}
	delete(c.s.enrollments, key)
	return nil
}

func (c *Courses) IsEnrolled(_ context.Context, userID int64, courseID int64) (bool, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	_, ok := c.s.enrollments[enrollmentKey{userID, courseID}]
	return ok, nil
}

// Audit keeps audit entries in insertion order.
type Audit struct{ s *Store }

func (a *Audit) Log(_ context.Context, entry model.AuditEntry) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	entry.ID = a.s.id("audit")
	a.s.audit = append(a.s.audit, entry)
	return nil
}

func (a *Audit) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	matched := make([]model.AuditEntry, 0)
	for i := len(a.s.audit) - 1; i >= 0; i-- {
		e := a.s.audit[i]
		if query.Action != "" && !strings.EqualFold(e.Action, query.Action) {
			continue
		}
		if query.AccountID > 0 && e.Actor.AccountID != query.AccountID {
			continue
		}
		if query.Status != "" && !strings.EqualFold(e.Status, query.Status) {
			continue
		}
		if query.Resource != "" && !strings.Contains(strings.ToLower(e.Resource), strings.ToLower(query.Resource)) {
			continue
		}
		if query.From != nil && e.OccurredAt.Before(*query.From) {
			continue
		}
		if query.To != nil && e.OccurredAt.After(*query.To) {
			continue
		}
		matched = append(matched, e)
	}

	items, meta := page(matched, query.Page, query.Limit)
	return items, meta, nil
}

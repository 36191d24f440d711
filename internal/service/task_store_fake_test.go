package service

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/role-approval-api/internal/models"
	"github.com/noah-isme/role-approval-api/internal/repository"
)

// memDB is an in-memory stand-in for the record store and the evidence directory.
// WithinTx holds txMu for the whole callback and restores a snapshot on error, so
// transactions are serializable and atomic. Writes outside a transaction also take txMu.
type memDB struct {
	mu   sync.Mutex
	txMu sync.Mutex
	seq  int

	tasks []models.Task
	docs  []models.Document
	users map[string]models.UserWithRole
	roles map[string]models.Role
	files map[string]bool

	failRoleUpdate     error
	failDecisionUpdate error
	failFileDelete     map[string]error
	pendingReadDelay   time.Duration
	fileDeletes        []string
}

func newMemDB() *memDB {
	db := &memDB{
		users:          make(map[string]models.UserWithRole),
		roles:          make(map[string]models.Role),
		files:          make(map[string]bool),
		failFileDelete: make(map[string]error),
	}
	for i, role := range models.SeedRoles {
		role.ID = fmt.Sprintf("role-%d", i)
		db.roles[role.Name] = role
	}
	return db
}

func (db *memDB) role(name string) models.Role {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.roles[name]
}

func (db *memDB) addUser(id string, roleName string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	role := db.roles[roleName]
	db.users[id] = models.UserWithRole{
		User:     models.User{ID: id, Email: id + "@example.com", Name: "User " + id, RoleID: role.ID},
		RoleName: role.Name,
		RoleTier: role.Tier,
	}
}

func (db *memDB) userRoleID(id string) string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.users[id].RoleID
}

func (db *memDB) putFile(path string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.files[path] = true
}

func (db *memDB) hasFile(path string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.files[path]
}

func (db *memDB) tasksOf(userID string) []models.Task {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Task
	for _, t := range db.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (db *memDB) docsOf(taskID string) []models.Document {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Document
	for _, d := range db.docs {
		if d.TaskID == taskID {
			out = append(out, d)
		}
	}
	return out
}

func (db *memDB) docCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.docs)
}

// seedTask inserts a task directly, bypassing the service.
func (db *memDB) seedTask(userID, roleName string, status models.TaskStatus, paths ...string) models.Task {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seq++
	roleID := db.roles[roleName].ID
	task := models.Task{
		ID:              fmt.Sprintf("task-%d", db.seq),
		UserID:          userID,
		Type:            models.TaskTypeRoleUpgrade,
		Status:          status,
		State:           models.TaskStateOpen,
		RequestedRoleID: &roleID,
		CreatedAt:       time.Date(2024, 1, 1, 0, 0, db.seq, 0, time.UTC),
	}
	if status.IsDecision() {
		task.State = models.TaskStateClosed
	}
	db.tasks = append(db.tasks, task)
	for i, p := range paths {
		db.docs = append(db.docs, models.Document{
			ID:       fmt.Sprintf("%s-doc-%d", task.ID, i),
			TaskID:   task.ID,
			Filename: p,
			Path:     p,
			MimeType: "application/pdf",
		})
		db.files[p] = true
	}
	return task
}

type memTasks struct{ db *memDB }

func (r memTasks) CreateWithTx(ctx context.Context, tx *sqlx.Tx, task *models.Task) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tasks {
		if t.UserID == task.UserID && t.Type == task.Type && t.Status == models.TaskStatusPending && task.Status == models.TaskStatusPending {
			return repository.ErrPendingTaskExists
		}
	}
	r.db.seq++
	task.ID = fmt.Sprintf("task-%d", r.db.seq)
	r.db.tasks = append(r.db.tasks, *task)
	return nil
}

func (r memTasks) FindLatestByUser(ctx context.Context, userID string, taskType models.TaskType) (*models.Task, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := len(r.db.tasks) - 1; i >= 0; i-- {
		t := r.db.tasks[i]
		if t.UserID == userID && t.Type == taskType {
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memTasks) FindByUserAndStatus(ctx context.Context, userID string, taskType models.TaskType, status models.TaskStatus) (*models.Task, error) {
	r.db.mu.Lock()
	var found *models.Task
	for i := len(r.db.tasks) - 1; i >= 0; i-- {
		t := r.db.tasks[i]
		if t.UserID == userID && t.Type == taskType && t.Status == status {
			found = &t
			break
		}
	}
	delay := r.db.pendingReadDelay
	r.db.mu.Unlock()
	if status == models.TaskStatusPending && delay > 0 {
		time.Sleep(delay)
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	return found, nil
}

func (r memTasks) ListByUserAndStatus(ctx context.Context, userID string, taskType models.TaskType, status models.TaskStatus) ([]models.Task, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Task
	for _, t := range r.db.tasks {
		if t.UserID == userID && t.Type == taskType && t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memTasks) ListDetailsByStatus(ctx context.Context, taskType models.TaskType, status models.TaskStatus) ([]models.TaskDetail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.TaskDetail
	for _, t := range r.db.tasks {
		if t.Type == taskType && t.Status == status {
			out = append(out, r.detailLocked(t))
		}
	}
	return out, nil
}

func (r memTasks) FindLatestDetailByUser(ctx context.Context, userID string, taskType models.TaskType) (*models.TaskDetail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := len(r.db.tasks) - 1; i >= 0; i-- {
		t := r.db.tasks[i]
		if t.UserID == userID && t.Type == taskType {
			detail := r.detailLocked(t)
			return &detail, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memTasks) detailLocked(t models.Task) models.TaskDetail {
	user := r.db.users[t.UserID]
	detail := models.TaskDetail{Task: t, UserName: user.Name, UserEmail: user.Email}
	if t.RequestedRoleID != nil {
		for _, role := range r.db.roles {
			if role.ID == *t.RequestedRoleID {
				name := role.Name
				detail.RequestedRoleName = &name
			}
		}
	}
	return detail
}

func (r memTasks) UpdateDecision(ctx context.Context, decision models.TaskDecision) (*models.Task, error) {
	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()
	return r.UpdateDecisionWithTx(ctx, nil, decision)
}

func (r memTasks) UpdateDecisionWithTx(ctx context.Context, tx *sqlx.Tx, decision models.TaskDecision) (*models.Task, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failDecisionUpdate != nil {
		return nil, r.db.failDecisionUpdate
	}
	for i, t := range r.db.tasks {
		if t.ID != decision.TaskID || t.Status != models.TaskStatusPending {
			continue
		}
		reviewer := decision.ReviewerID
		actionAt := decision.ActionAt
		t.Status = decision.Status
		t.State = models.TaskStateClosed
		t.ActionByID = &reviewer
		t.Comment = decision.Comment
		t.ActionAt = &actionAt
		r.db.tasks[i] = t
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (r memTasks) Delete(ctx context.Context, id string) error {
	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, d := range r.db.docs {
		if d.TaskID == id {
			return fmt.Errorf("foreign key violation: document %s references task %s", d.ID, id)
		}
	}
	for i, t := range r.db.tasks {
		if t.ID == id {
			r.db.tasks = append(r.db.tasks[:i:i], r.db.tasks[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type memDocs struct{ db *memDB }

func (r memDocs) CreateBatchWithTx(ctx context.Context, tx *sqlx.Tx, docs []models.Document) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range docs {
		r.db.seq++
		docs[i].ID = fmt.Sprintf("doc-%d", r.db.seq)
		r.db.docs = append(r.db.docs, docs[i])
	}
	return nil
}

func (r memDocs) ListByTaskIDs(ctx context.Context, taskIDs []string) ([]models.Document, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	wanted := make(map[string]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		wanted[id] = struct{}{}
	}
	var out []models.Document
	for _, d := range r.db.docs {
		if _, ok := wanted[d.TaskID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r memDocs) DeleteByTask(ctx context.Context, taskID string) (int64, error) {
	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.docs[:0:0]
	var deleted int64
	for _, d := range r.db.docs {
		if d.TaskID == taskID {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	r.db.docs = kept
	return deleted, nil
}

type memUsers struct{ db *memDB }

func (r memUsers) FindByID(ctx context.Context, id string) (*models.UserWithRole, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func (r memUsers) UpdateRoleWithTx(ctx context.Context, tx *sqlx.Tx, userID, roleID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failRoleUpdate != nil {
		return r.db.failRoleUpdate
	}
	user, ok := r.db.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.RoleID = roleID
	for _, role := range r.db.roles {
		if role.ID == roleID {
			user.RoleName = role.Name
			user.RoleTier = role.Tier
		}
	}
	r.db.users[userID] = user
	return nil
}

type memRoles struct{ db *memDB }

func (r memRoles) FindByName(ctx context.Context, name string) (*models.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	role, ok := r.db.roles[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &role, nil
}

func (r memRoles) FindBaseline(ctx context.Context) (*models.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, role := range r.db.roles {
		if role.IsBaseline() {
			return &role, nil
		}
	}
	return nil, sql.ErrNoRows
}

// memAccounts exposes the account lookups used by registration and admin user creation.
type memAccounts struct{ db *memDB }

func (r memAccounts) FindByID(ctx context.Context, id string) (*models.UserWithRole, error) {
	return memUsers{r.db}.FindByID(ctx, id)
}

func (r memAccounts) FindByEmail(ctx context.Context, email string) (*models.UserWithRole, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, user := range r.db.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memAccounts) Create(ctx context.Context, user *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.db.seq++
	user.ID = fmt.Sprintf("user-%d", r.db.seq)
	record := models.UserWithRole{User: *user}
	for _, role := range r.db.roles {
		if role.ID == user.RoleID {
			record.RoleName = role.Name
			record.RoleTier = role.Tier
		}
	}
	r.db.users[user.ID] = record
	return nil
}

type memFiles struct{ db *memDB }

func (r memFiles) Delete(filename string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.fileDeletes = append(r.db.fileDeletes, filename)
	if err, ok := r.db.failFileDelete[filename]; ok {
		return err
	}
	if !r.db.files[filename] {
		return fmt.Errorf("delete upload file: %w", fs.ErrNotExist)
	}
	delete(r.db.files, filename)
	return nil
}

type memUnitOfWork struct{ db *memDB }

func (u memUnitOfWork) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	u.db.txMu.Lock()
	defer u.db.txMu.Unlock()

	u.db.mu.Lock()
	tasks := append([]models.Task(nil), u.db.tasks...)
	docs := append([]models.Document(nil), u.db.docs...)
	users := make(map[string]models.UserWithRole, len(u.db.users))
	for k, v := range u.db.users {
		users[k] = v
	}
	u.db.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in transaction: %v", p)
		}
		if err != nil {
			u.db.mu.Lock()
			u.db.tasks = tasks
			u.db.docs = docs
			u.db.users = users
			u.db.mu.Unlock()
		}
	}()
	return fn(nil)
}

type spyNotifier struct {
	mu     sync.Mutex
	events []models.Notification
}

func (s *spyNotifier) Notify(ctx context.Context, n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, n)
}

func (s *spyNotifier) byEvent(event models.NotificationEvent) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.events {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

func newTaskServiceForTest(db *memDB, opts ...TaskServiceOption) *TaskService {
	return NewTaskService(memTasks{db}, memDocs{db}, memUsers{db}, memRoles{db}, memFiles{db}, memUnitOfWork{db}, nil, opts...)
}

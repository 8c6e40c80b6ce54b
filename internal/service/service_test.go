package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
)

// fixedNow is the clock used by service tests: Wednesday 1 January 2025.
var fixedNow = time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local)

type testEnv struct {
	db           *gorm.DB
	users        *repository.UserRepository
	instances    *repository.InstanceRepository
	patterns     *repository.RecurrenceRepository
	materializer *Materializer
	refresher    *RefreshCoordinator
	detector     *OrphanDetector
	deleter      *CascadingDeleter
	todos        *TodoService
	publisher    *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		db:        db,
		users:     repository.NewUserRepository(db),
		instances: repository.NewInstanceRepository(db),
		patterns:  repository.NewRecurrenceRepository(db),
		publisher: &recordingPublisher{},
	}
	env.materializer = NewMaterializer(env.instances, NewLocalLocker())
	env.refresher = NewRefreshCoordinator(env.patterns, env.materializer, 4)
	env.detector = NewOrphanDetector(env.instances, env.patterns)
	env.deleter = NewCascadingDeleter(env.patterns, env.publisher)
	env.todos = NewTodoService(env.instances, env.patterns, env.materializer, env.refresher, env.deleter, 7)
	env.todos.now = func() time.Time { return fixedNow }
	return env
}

func (e *testEnv) addPattern(t *testing.T, userID, name, rule, startsOn string) model.RecurrencePattern {
	t.Helper()
	p := model.RecurrencePattern{UserID: userID, Name: name, RRule: rule, StartsOn: startsOn}
	require.NoError(t, e.patterns.Create(context.Background(), &p))
	return p
}

func (e *testEnv) addRecurring(t *testing.T, userID, patternID, date string) model.TodoInstance {
	t.Helper()
	inst := model.TodoInstance{
		ID:           model.InstanceID(userID, patternID, date),
		UserID:       userID,
		Name:         "habit",
		Date:         date,
		IsRecurring:  true,
		RecurrenceID: &patternID,
	}
	require.NoError(t, e.instances.Create(context.Background(), &inst))
	return inst
}

func (e *testEnv) countInstances(t *testing.T, userID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.TodoInstance{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	require.NoError(t, err)
	return d
}

func dayPtr(t *testing.T, s string) *time.Time {
	d := day(t, s)
	return &d
}

type recordingPublisher struct {
	mu     sync.Mutex
	queues []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, queue string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.queues = append(p.queues, queue)
	p.events = append(p.events, event)
	return nil
}

// noLocker lets concurrent callers through without coordination.
type noLocker struct{}

func (noLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// failingLocker refuses to lock the pattern with id fail.
type failingLocker struct {
	fail string
}

var errLockRefused = errors.New("lock refused")

func (l failingLocker) Lock(_ context.Context, key string) (func(), error) {
	if strings.HasSuffix(key, "/"+l.fail) {
		return nil, errLockRefused
	}
	return func() {}, nil
}

// refusingLocker never grants a lock.
type refusingLocker struct{}

func (refusingLocker) Lock(context.Context, string) (func(), error) { return nil, errLockRefused }

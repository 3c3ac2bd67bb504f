package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rawblock/constructible-engine/internal/geometry"
	"github.com/rawblock/constructible-engine/internal/scalar"
	"github.com/rawblock/constructible-engine/pkg/models"
)

// fakeStore is an in-memory stand-in for internal/store.Store, reproducing
// its documented contracts closely enough to exercise the coordinator loop
// without a live Postgres instance.
type fakeStore struct {
	mu          sync.Mutex
	env         *scalar.Env
	pointDigits int
	nextID      int64

	known   map[string]*geometry.Point
	working map[string]*geometry.Point
	tasks   []*models.Task

	// checkoutLog records every successful checkout's (taskID, clientID) for
	// Testable Property 5 (no double lease).
	checkoutLog []checkoutRecord
}

type checkoutRecord struct {
	taskID   int64
	clientID int32
}

func newFakeStore(env *scalar.Env, pointDigits int) *fakeStore {
	return &fakeStore{
		env:         env,
		pointDigits: pointDigits,
		known:       make(map[string]*geometry.Point),
		working:     make(map[string]*geometry.Point),
	}
}

func (s *fakeStore) InsertManyKnown(ctx context.Context, points []*geometry.Point) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range points {
		if _, ok := s.known[p.Fingerprint]; ok {
			continue
		}
		s.nextID++
		cp := *p
		id := s.nextID
		cp.ID = &id
		cp.InStore = true
		s.known[p.Fingerprint] = &cp
		n++
	}
	return n, nil
}

func (s *fakeStore) WorkingIsEmpty(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.working) == 0, nil
}

// PromoteKnownToWorking mirrors INSERT...SELECT ... ON CONFLICT DO NOTHING:
// every known point not already present (by fingerprint) in working is
// copied in, assigned a fresh working-table id.
func (s *fakeStore) PromoteKnownToWorking(ctx context.Context, iteration int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for fp, p := range s.known {
		if _, ok := s.working[fp]; ok {
			continue
		}
		s.nextID++
		cp := *p
		id := s.nextID
		cp.ID = &id
		s.working[fp] = &cp
		n++
	}
	return n, nil
}

func (s *fakeStore) LoadWorkingAfter(ctx context.Context, afterID int64) ([]models.PointRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.PointRow
	for _, p := range s.working {
		if *p.ID < afterID {
			continue
		}
		rows = append(rows, models.PointRow{
			ID:   *p.ID,
			XStr: s.env.Render(p.X, s.pointDigits),
			YStr: s.env.Render(p.Y, s.pointDigits),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (s *fakeStore) SeedTasks(ctx context.Context, batchID int32, iteration uint8) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.working {
		exists := false
		for _, task := range s.tasks {
			if task.BatchID == batchID && task.Iteration == iteration && task.PointID == *p.ID {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		s.nextID++
		s.tasks = append(s.tasks, &models.Task{
			ID:        s.nextID,
			BatchID:   batchID,
			PointID:   *p.ID,
			Iteration: iteration,
		})
		n++
	}
	return n, nil
}

func (s *fakeStore) Checkout(ctx context.Context, batchID int32, clientID int32) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]*models.Task(nil), s.tasks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PointID < sorted[j].PointID })

	for _, task := range sorted {
		if task.BatchID == batchID && task.ClientID == nil {
			cid := clientID
			task.ClientID = &cid
			task.IsRunning = true
			now := time.Now()
			task.StartTime = &now
			s.checkoutLog = append(s.checkoutLog, checkoutRecord{taskID: task.ID, clientID: clientID})
			cp := *task
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Checkin(ctx context.Context, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.ID == taskID {
			task.IsRunning = false
			task.IsDone = true
			now := time.Now()
			task.EndTime = &now
			return nil
		}
	}
	return fmt.Errorf("fakeStore: unknown task %d", taskID)
}

func (s *fakeStore) MarkError(ctx context.Context, taskID int64, errInfo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.ID == taskID {
			task.HasError = true
			task.ErrorInfo = &errInfo
			return nil
		}
	}
	return fmt.Errorf("fakeStore: unknown task %d", taskID)
}

// BatchStatus mirrors internal/store.Store.BatchStatus's three aggregations,
// including the 1-based "no generation run yet" default of 0.
func (s *fakeStore) BatchStatus(ctx context.Context, batchID int32) (models.BatchStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byIter := make(map[uint8][]*models.Task)
	for _, task := range s.tasks {
		if task.BatchID != batchID {
			continue
		}
		byIter[task.Iteration] = append(byIter[task.Iteration], task)
	}

	last := 0
	for iter, tasks := range byIter {
		allDone := true
		for _, task := range tasks {
			if !task.IsDone {
				allDone = false
				break
			}
		}
		if allDone && int(iter) > last {
			last = int(iter)
		}
	}

	var out models.BatchStatus
	out.LastCompleteIteration = last
	for _, task := range s.tasks {
		if task.BatchID != batchID {
			continue
		}
		if task.IsRunning {
			out.IsCurrentlyRunning = true
		}
		if !task.IsDone {
			out.AnyIncomplete = true
		}
	}
	return out, nil
}

func (s *fakeStore) knownCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.known)
}

func (s *fakeStore) knownFingerprints() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.known))
	for fp := range s.known {
		out[fp] = true
	}
	return out
}

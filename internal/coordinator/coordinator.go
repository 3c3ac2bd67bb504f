// Package coordinator implements the distributed iteration coordinator (spec
// C5): the root/ordinary worker loops, generation rollover, and the
// drive_expansion nested-loop algorithm from spec.md §4.5.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rawblock/constructible-engine/internal/dedup"
	"github.com/rawblock/constructible-engine/internal/geometry"
	"github.com/rawblock/constructible-engine/internal/scalar"
	"github.com/rawblock/constructible-engine/pkg/models"
)

// rootClientID is the client_id that distinguishes the root worker
// (spec.md §4.5).
const rootClientID int32 = 0

// rootIdleSleep is the root worker's wait interval when other workers are
// still mid-iteration (spec.md §4.5).
const rootIdleSleep = 5 * time.Second

// Store is everything the coordinator needs from the persistent work store
// (spec C4). internal/store.Store satisfies it; tests can fake it.
type Store interface {
	dedup.Flusher

	LoadWorkingAfter(ctx context.Context, afterID int64) ([]models.PointRow, error)
	PromoteKnownToWorking(ctx context.Context, iteration int) (int64, error)
	SeedTasks(ctx context.Context, batchID int32, iteration uint8) (int64, error)
	Checkout(ctx context.Context, batchID int32, clientID int32) (*models.Task, error)
	Checkin(ctx context.Context, taskID int64) error
	MarkError(ctx context.Context, taskID int64, errInfo string) error
	BatchStatus(ctx context.Context, batchID int32) (models.BatchStatus, error)
	WorkingIsEmpty(ctx context.Context) (bool, error)
}

// SeedReader is the external collaborator (spec C7) that supplies the root
// worker's cold-start seed points, already converted into geometry.Points.
type SeedReader interface {
	ReadSeeds(env *scalar.Env, fpDigits int) ([]geometry.Point, error)
}

// Reporter is the external collaborator (spec C10) driving status lines,
// checkpoints, and the benchmark deadline.
type Reporter interface {
	Tick(iteration uint8, taskPointID int64, pointsFoundThisTask, cacheLen int) (benchmarkExpired bool)
}

// EventSink is the external collaborator (spec C9) the coordinator notifies
// of lifecycle events; it never blocks or affects correctness.
type EventSink interface {
	Checkout(batchID int32, iteration uint8, pointID int64, leaseID string)
	Checkin(batchID int32, iteration uint8, pointID int64)
	Rollover(batchID int32, iteration uint8, promoted int64)
}

type noopSink struct{}

func (noopSink) Checkout(int32, uint8, int64, string) {}
func (noopSink) Checkin(int32, uint8, int64)          {}
func (noopSink) Rollover(int32, uint8, int64)         {}

// NoopEventSink is used when the status surface is disabled.
var NoopEventSink EventSink = noopSink{}

// Config is the coordinator's run parameters, sourced from internal/config.
type Config struct {
	ClientID      int32
	BatchID       int32
	MaxIterations int
	PointDigits   int
	MaxPointCache int
}

// Coordinator drives the lease->expand->checkin loop described in spec.md
// §4.5.
type Coordinator struct {
	store    Store
	env      *scalar.Env
	cache    *dedup.Cache
	seeds    SeedReader
	reporter Reporter
	events   EventSink
	cfg      Config

	// working accumulates every points_working row this worker has ever
	// loaded, in the stable (x,y) order the store returns them in. Each task
	// only fetches the delta since highestLoadedID (spec.md §4.5:
	// "load_working_after(highest-id-already-loaded)") and appends it here,
	// so a pivot task's point — loaded by an earlier task or an earlier
	// iteration — is always still present when drive_expansion looks it up.
	working         []geometry.Point
	highestLoadedID int64
}

// New constructs a Coordinator. events may be nil, in which case
// NoopEventSink is used.
func New(store Store, env *scalar.Env, seeds SeedReader, reporter Reporter, events EventSink, cfg Config) *Coordinator {
	if events == nil {
		events = NoopEventSink
	}
	c := &Coordinator{
		store:    store,
		env:      env,
		seeds:    seeds,
		reporter: reporter,
		events:   events,
		cfg:      cfg,
	}
	c.cache = dedup.New(cfg.MaxPointCache, store)
	return c
}

func (c *Coordinator) isRoot() bool { return c.cfg.ClientID == rootClientID }

// Run executes the worker loop until there is no more work (ordinary) or the
// batch's final iteration completes / the benchmark budget expires (root).
// Exit codes per spec.md §6 are the caller's responsibility: Run returns nil
// for every non-fatal termination and a non-nil error only for storage or
// configuration failures.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.isRoot() {
		if err := c.rootColdStart(ctx); err != nil {
			return err
		}
	}

	for {
		task, err := c.store.Checkout(ctx, c.cfg.BatchID, c.cfg.ClientID)
		if err != nil {
			return fmt.Errorf("coordinator: checkout: %w", err)
		}

		if task == nil {
			if !c.isRoot() {
				log.Printf("worker %d: no task available, exiting", c.cfg.ClientID)
				return nil
			}
			done, err := c.rootRollover(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			continue
		}

		leaseID := newLeaseID()
		c.events.Checkout(task.BatchID, task.Iteration, task.PointID, leaseID)

		benchmarkExpired, err := c.runTask(ctx, task)
		if err != nil {
			if merr := c.store.MarkError(ctx, task.ID, err.Error()); merr != nil {
				log.Printf("coordinator: failed to record task error: %v", merr)
			}
			return fmt.Errorf("coordinator: task %d: %w", task.ID, err)
		}

		if err := c.cache.Flush(ctx); err != nil {
			return fmt.Errorf("coordinator: flush: %w", err)
		}
		if err := c.store.Checkin(ctx, task.ID); err != nil {
			return fmt.Errorf("coordinator: checkin: %w", err)
		}
		c.events.Checkin(task.BatchID, task.Iteration, task.PointID)

		if benchmarkExpired {
			log.Printf("worker %d: benchmark budget exhausted, exiting after flush", c.cfg.ClientID)
			return nil
		}
	}
}

// rootColdStart loads the seed file into points_known when points_working is
// still empty, per spec.md §4.5.
func (c *Coordinator) rootColdStart(ctx context.Context) error {
	empty, err := c.store.WorkingIsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("coordinator: cold start check: %w", err)
	}
	if !empty {
		return nil
	}

	seeds, err := c.seeds.ReadSeeds(c.env, c.cfg.PointDigits)
	if err != nil {
		return fmt.Errorf("coordinator: reading seed file: %w", err)
	}

	refs := make([]*geometry.Point, len(seeds))
	for i := range seeds {
		refs[i] = &seeds[i]
	}
	if _, err := c.store.InsertManyKnown(ctx, refs); err != nil {
		return fmt.Errorf("coordinator: seeding known: %w", err)
	}
	log.Printf("root: seeded %d points into known", len(seeds))
	return nil
}

// rootRollover implements spec.md §4.5's root idle behavior: wait while
// other workers finish the current iteration, or promote+seed the next one,
// or terminate once MAX_ITERATIONS is exhausted.
func (c *Coordinator) rootRollover(ctx context.Context) (done bool, err error) {
	status, err := c.store.BatchStatus(ctx, c.cfg.BatchID)
	if err != nil {
		return false, fmt.Errorf("coordinator: batch status: %w", err)
	}

	if status.IsCurrentlyRunning || status.AnyIncomplete {
		time.Sleep(rootIdleSleep)
		return false, nil
	}

	nextIter := status.LastCompleteIteration + 1
	if nextIter > c.cfg.MaxIterations {
		log.Printf("root: reached max iterations (%d), terminating", c.cfg.MaxIterations)
		return true, nil
	}

	promoted, err := c.store.PromoteKnownToWorking(ctx, nextIter)
	if err != nil {
		return false, fmt.Errorf("coordinator: promote: %w", err)
	}
	if _, err := c.store.SeedTasks(ctx, c.cfg.BatchID, uint8(nextIter)); err != nil {
		return false, fmt.Errorf("coordinator: seed tasks: %w", err)
	}
	c.events.Rollover(c.cfg.BatchID, uint8(nextIter), promoted)
	log.Printf("root: rolled over to iteration %d, promoted %d points", nextIter, promoted)
	return false, nil
}

// runTask performs one lease's worth of work: extend this worker's local
// working-set copy with whatever points_working has gained since the last
// load, run drive_expansion from the task's pivot, and report whether the
// benchmark budget expired during it.
func (c *Coordinator) runTask(ctx context.Context, task *models.Task) (benchmarkExpired bool, err error) {
	oldHighest := c.highestLoadedID
	rows, err := c.store.LoadWorkingAfter(ctx, c.highestLoadedID)
	if err != nil {
		return false, fmt.Errorf("load working: %w", err)
	}

	// The store's contract returns id >= afterID, which re-includes the
	// boundary row already accumulated on the previous call; only append
	// rows strictly newer than what we already hold.
	var newRows []models.PointRow
	for _, r := range rows {
		if r.ID > oldHighest {
			newRows = append(newRows, r)
		}
		if r.ID > c.highestLoadedID {
			c.highestLoadedID = r.ID
		}
	}

	fresh, err := c.toPoints(newRows)
	if err != nil {
		return false, err
	}
	c.working = append(c.working, fresh...)
	sortWorking(c.env, c.working)

	pivotIdx := -1
	for i, p := range c.working {
		if p.ID != nil && *p.ID == task.PointID {
			pivotIdx = i
			break
		}
	}
	if pivotIdx < 0 {
		return false, fmt.Errorf("pivot point %d not found in loaded working set", task.PointID)
	}

	found := 0
	expired := false
	emit := func(p geometry.Point) error {
		found++
		if _, err := c.cache.Offer(ctx, &p); err != nil {
			return err
		}
		if c.reporter != nil && c.reporter.Tick(task.Iteration, task.PointID, found, c.cache.Len()) {
			expired = true
		}
		return nil
	}

	if err := driveExpansion(c.env, c.working, pivotIdx, c.cfg.PointDigits, emit); err != nil {
		return false, err
	}
	return expired, nil
}

func (c *Coordinator) toPoints(rows []models.PointRow) ([]geometry.Point, error) {
	out := make([]geometry.Point, len(rows))
	for i, r := range rows {
		x, err := c.env.FromString(r.XStr)
		if err != nil {
			return nil, fmt.Errorf("parsing working row %d x: %w", r.ID, err)
		}
		y, err := c.env.FromString(r.YStr)
		if err != nil {
			return nil, fmt.Errorf("parsing working row %d y: %w", r.ID, err)
		}
		id := r.ID
		p := geometry.NewPoint(c.env, x, y, c.cfg.PointDigits)
		p.ID = &id
		p.InStore = true
		out[i] = p
	}
	return out, nil
}

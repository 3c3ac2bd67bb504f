// Package store implements the persistent work store (spec C4): the
// points_working / points_known tables and the run_status task table, backed
// by Postgres through pgx, grounded on the teacher's internal/db/postgres.go.
package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/constructible-engine/internal/geometry"
	"github.com/rawblock/constructible-engine/internal/scalar"
	"github.com/rawblock/constructible-engine/pkg/models"
)

// Store is the Postgres-backed implementation of spec.md §4.4's contract.
type Store struct {
	pool *pgxpool.Pool
	env  *scalar.Env

	working, known, status string
	pointDigits            int
	charDigits             int
	decPrecision, decScale int
}

// Config bundles what Connect needs beyond the DSN.
type Config struct {
	TableWorking, TableKnown, TableStatus string
	PointDigits                           int
	CharDigits                            int
	DecimalPrecision, DecimalScale        int
}

// Connect opens the pgx pool and pings it, mirroring the teacher's
// db.Connect.
func Connect(ctx context.Context, connStr string, env *scalar.Env, cfg Config) (*Store, error) {
	for _, name := range []string{cfg.TableWorking, cfg.TableKnown, cfg.TableStatus} {
		if err := validateIdentifier(name); err != nil {
			return nil, err
		}
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("store: unable to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}
	log.Println("store: connected to Postgres work store")
	return &Store{
		pool:         pool,
		env:          env,
		working:      cfg.TableWorking,
		known:        cfg.TableKnown,
		status:       cfg.TableStatus,
		pointDigits:  cfg.PointDigits,
		charDigits:   cfg.CharDigits,
		decPrecision: cfg.DecimalPrecision,
		decScale:     cfg.DecimalScale,
	}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// lockKey deterministically hashes a lease name into the int64 space
// pg_advisory_xact_lock expects.
func lockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

func (s *Store) render(p *geometry.Point) (xStr, yStr string) {
	return s.env.Render(s.env.Snap(p.X), s.pointDigits), s.env.Render(s.env.Snap(p.Y), s.pointDigits)
}

// insertOne upserts a single point into table (known or working) and returns
// rows affected (0 or 1), populating p.ID and p.InStore on success.
func (s *Store) insertOne(ctx context.Context, q queryer, table string, p *geometry.Point, iterationOrigin *int) (int64, error) {
	xStr, yStr := s.render(p)

	var sql string
	var args []any
	if iterationOrigin != nil {
		sql = fmt.Sprintf(
			`INSERT INTO %s (x_str, y_str, xd, yd, iteration_origin)
			 VALUES ($1, $2, $3::numeric(%d,%d), $4::numeric(%d,%d), $5)
			 ON CONFLICT (xd, yd) DO NOTHING RETURNING id`,
			table, s.decPrecision, s.decScale, s.decPrecision, s.decScale)
		args = []any{xStr, yStr, xStr, yStr, *iterationOrigin}
	} else {
		sql = fmt.Sprintf(
			`INSERT INTO %s (x_str, y_str, xd, yd)
			 VALUES ($1, $2, $3::numeric(%d,%d), $4::numeric(%d,%d))
			 ON CONFLICT (xd, yd) DO NOTHING RETURNING id`,
			table, s.decPrecision, s.decScale, s.decPrecision, s.decScale)
		args = []any{xStr, yStr, xStr, yStr}
	}

	var id int64
	err := q.QueryRow(ctx, sql, args...).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("store: insert into %s: %w", table, err)
	}
	p.ID = &id
	p.InStore = true
	return 1, nil
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx, letting insertOne
// run standalone or inside a caller-managed transaction.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InsertKnown upserts a single point into points_known.
func (s *Store) InsertKnown(ctx context.Context, p *geometry.Point) (int64, error) {
	return s.insertOne(ctx, s.pool, s.known, p, nil)
}

// InsertManyKnown implements dedup.Flusher: a single transaction guarded by a
// cross-worker advisory lease on the known table (spec.md §4.3's flush
// protocol), returning total rows affected.
func (s *Store) InsertManyKnown(ctx context.Context, points []*geometry.Point) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: begin flush tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(s.known+".flush")); err != nil {
		return 0, fmt.Errorf("store: acquire flush lease: %w", err)
	}

	var total int64
	for _, p := range points {
		n, err := s.insertOne(ctx, tx, s.known, p, nil)
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("store: commit flush tx: %w", err)
	}
	return total, nil
}

// LoadWorkingAfter returns points_working rows with id >= afterID, ordered by
// (xd, yd), per spec.md §4.4's contract. Callers pass their own high-water
// mark and accumulate these (possibly overlapping-by-one) batches onto a
// running working-set copy — see internal/coordinator.Coordinator.working.
func (s *Store) LoadWorkingAfter(ctx context.Context, afterID int64) ([]models.PointRow, error) {
	sql := fmt.Sprintf(
		`SELECT id, x_str, y_str, xd::text, yd::text, iteration_origin
		 FROM %s WHERE id >= $1 ORDER BY xd, yd`, s.working)
	rows, err := s.pool.Query(ctx, sql, afterID)
	if err != nil {
		return nil, fmt.Errorf("store: load working: %w", err)
	}
	defer rows.Close()

	var out []models.PointRow
	for rows.Next() {
		var r models.PointRow
		var iterOrigin int
		if err := rows.Scan(&r.ID, &r.XStr, &r.YStr, &r.XD, &r.YD, &iterOrigin); err != nil {
			return nil, fmt.Errorf("store: scan working row: %w", err)
		}
		r.IterationOrigin = &iterOrigin
		out = append(out, r)
	}
	return out, rows.Err()
}

// PromoteKnownToWorking copies every known row into working, stamping
// iteration_origin, ignoring rows already present (spec.md §4.4).
func (s *Store) PromoteKnownToWorking(ctx context.Context, iteration int) (int64, error) {
	sql := fmt.Sprintf(
		`INSERT INTO %s (x_str, y_str, xd, yd, iteration_origin)
		 SELECT x_str, y_str, xd, yd, $1 FROM %s
		 ON CONFLICT (xd, yd) DO NOTHING`, s.working, s.known)
	tag, err := s.pool.Exec(ctx, sql, iteration)
	if err != nil {
		return 0, fmt.Errorf("store: promote known->working: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SeedTasks creates one available task per points_working row for the given
// batch/iteration (spec.md §4.4).
func (s *Store) SeedTasks(ctx context.Context, batchID int32, iteration uint8) (int64, error) {
	sql := fmt.Sprintf(
		`INSERT INTO %s (batch_id, point_id, iteration, is_running, is_done)
		 SELECT $1, id, $2, false, false FROM %s
		 ON CONFLICT (batch_id, iteration, point_id) DO NOTHING`, s.status, s.working)
	tag, err := s.pool.Exec(ctx, sql, batchID, iteration)
	if err != nil {
		return 0, fmt.Errorf("store: seed tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Checkout implements spec.md §4.4's checkout, serialised against concurrent
// checkouts via a Postgres advisory lock held for the transaction's duration
// (DESIGN.md's Open Question decision #2: the C original's LOCK TABLES WRITE
// has no direct pgx-pool-friendly equivalent).
func (s *Store) Checkout(ctx context.Context, batchID int32, clientID int32) (*models.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin checkout tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(s.status+".checkout")); err != nil {
		return nil, fmt.Errorf("store: acquire checkout lease: %w", err)
	}

	selectSQL := fmt.Sprintf(
		`SELECT id, point_id, iteration FROM %s
		 WHERE batch_id = $1 AND client_id IS NULL
		 ORDER BY point_id ASC LIMIT 1`, s.status)

	var t models.Task
	t.BatchID = batchID
	err = tx.QueryRow(ctx, selectSQL, batchID).Scan(&t.ID, &t.PointID, &t.Iteration)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: select checkout candidate: %w", err)
	}

	now := time.Now()
	updateSQL := fmt.Sprintf(
		`UPDATE %s SET client_id = $1, is_running = true, start_time = $2 WHERE id = $3`, s.status)
	if _, err := tx.Exec(ctx, updateSQL, clientID, now, t.ID); err != nil {
		return nil, fmt.Errorf("store: mark checkout: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit checkout tx: %w", err)
	}

	t.ClientID = &clientID
	t.IsRunning = true
	t.StartTime = &now
	return &t, nil
}

// Checkin implements spec.md §4.4's checkin.
func (s *Store) Checkin(ctx context.Context, taskID int64) error {
	sql := fmt.Sprintf(
		`UPDATE %s SET is_running = false, is_done = true, end_time = $1 WHERE id = $2`, s.status)
	if _, err := s.pool.Exec(ctx, sql, time.Now(), taskID); err != nil {
		return fmt.Errorf("store: checkin: %w", err)
	}
	return nil
}

// MarkError records a failed task without flipping is_done, per spec.md §4.5
// "the task remains is_running=true with no end-time" for a storage-error
// abort; this is an operator-visible breadcrumb, not a recovery mechanism.
func (s *Store) MarkError(ctx context.Context, taskID int64, errInfo string) error {
	sql := fmt.Sprintf(`UPDATE %s SET has_error = true, error_info = $1 WHERE id = $2`, s.status)
	if _, err := s.pool.Exec(ctx, sql, errInfo, taskID); err != nil {
		return fmt.Errorf("store: mark error: %w", err)
	}
	return nil
}

// BatchStatus computes the triple from spec.md §4.4 via three aggregations.
// last_complete_iteration defaults to 0 (no generation run yet) rather than
// -1, so a fresh batch's first rollover computes next_iter=1 — iteration
// numbers are 1-based, generation 0 being the seeded/cold-start known set
// that promote_known_to_working(1) first copies into working.
func (s *Store) BatchStatus(ctx context.Context, batchID int32) (models.BatchStatus, error) {
	var out models.BatchStatus

	lastCompleteSQL := fmt.Sprintf(
		`SELECT COALESCE(MAX(iteration), 0) FROM (
		   SELECT iteration FROM %s WHERE batch_id = $1
		   GROUP BY iteration HAVING bool_and(is_done)
		 ) t`, s.status)
	var last int
	if err := s.pool.QueryRow(ctx, lastCompleteSQL, batchID).Scan(&last); err != nil {
		return out, fmt.Errorf("store: last complete iteration: %w", err)
	}
	out.LastCompleteIteration = last

	runningSQL := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE batch_id = $1 AND is_running)`, s.status)
	if err := s.pool.QueryRow(ctx, runningSQL, batchID).Scan(&out.IsCurrentlyRunning); err != nil {
		return out, fmt.Errorf("store: is currently running: %w", err)
	}

	incompleteSQL := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE batch_id = $1 AND NOT is_done)`, s.status)
	if err := s.pool.QueryRow(ctx, incompleteSQL, batchID).Scan(&out.AnyIncomplete); err != nil {
		return out, fmt.Errorf("store: any incomplete: %w", err)
	}

	return out, nil
}

// ListKnown returns every points_known row ordered by (xd, yd), for the
// final-dump step (spec.md §6's WRITE_POINTS_TO_FILE/OUTPUT_FILENAME; see
// internal/dump). Unlike LoadWorkingAfter this has no incremental watermark —
// it is called once, after the run finishes.
func (s *Store) ListKnown(ctx context.Context) ([]models.PointRow, error) {
	sql := fmt.Sprintf(`SELECT id, x_str, y_str FROM %s ORDER BY xd, yd`, s.known)
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("store: list known: %w", err)
	}
	defer rows.Close()

	var out []models.PointRow
	for rows.Next() {
		var r models.PointRow
		if err := rows.Scan(&r.ID, &r.XStr, &r.YStr); err != nil {
			return nil, fmt.Errorf("store: scan known row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WorkingIsEmpty reports whether points_working has any rows, used by the
// root worker's cold-start seed check (spec.md §4.5).
func (s *Store) WorkingIsEmpty(ctx context.Context) (bool, error) {
	sql := fmt.Sprintf(`SELECT NOT EXISTS(SELECT 1 FROM %s)`, s.working)
	var empty bool
	if err := s.pool.QueryRow(ctx, sql).Scan(&empty); err != nil {
		return false, fmt.Errorf("store: working empty check: %w", err)
	}
	return empty, nil
}

package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/tablesocket/internal/config"
	"github.com/rickgao/tablesocket/internal/events"
)

// DefaultQueueSize bounds notifications waiting to be batched.
const DefaultQueueSize = 1024

// ErrNotStarted is returned by Stop when Start was never called.
var ErrNotStarted = errors.New("journal not started")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notifications (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	payload     JSONB,
	received_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_name_received_at_idx
	ON notifications (name, received_at);
`

const insertSQL = `
	INSERT INTO notifications (id, name, payload, received_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO NOTHING
`

// DB is the subset of *pgxpool.Pool the journal uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config controls batching.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	QueueSize     int
}

// ConfigFrom maps the journal section of the client config.
func ConfigFrom(cfg config.JournalConfig) Config {
	return Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		QueueSize:     DefaultQueueSize,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Queued    int64
	Dropped   int64
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

type row struct {
	ID         uuid.UUID
	Name       string
	Payload    []byte
	ReceivedAt int64
}

// Journal subscribes to a bus and writes every recorded notification.
type Journal struct {
	cfg    Config
	db     DB
	logger *slog.Logger

	input chan row
	unsub []func()

	batchMu sync.Mutex
	batch   []row
	stats   Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Journal. Zero config values fall back to the config defaults.
func New(cfg Config, db DB, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = config.DefaultJournalBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = config.DefaultJournalFlushInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Journal{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "journal"),
		input:  make(chan row, cfg.QueueSize),
		batch:  make([]row, 0, cfg.BatchSize),
	}
}

// EnsureSchema creates the notifications table if it does not exist.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, schemaSQL); err != nil {
		return err
	}
	return nil
}

// Subscribe records the named notifications from bus until Stop.
func (j *Journal) Subscribe(bus *events.Bus, names ...string) {
	for _, name := range names {
		j.unsub = append(j.unsub, bus.On(name, j.Record))
	}
}

// Record queues a notification. It never blocks: when the queue is full the
// notification is dropped and counted.
func (j *Journal) Record(n events.Notification) {
	r := row{
		ID:         uuid.New(),
		Name:       n.Name,
		ReceivedAt: n.ReceivedAt.UnixMicro(),
	}
	if len(n.Payload) > 0 {
		r.Payload = []byte(n.Payload)
	}

	select {
	case j.input <- r:
		j.batchMu.Lock()
		j.stats.Queued++
		j.batchMu.Unlock()
	default:
		j.batchMu.Lock()
		j.stats.Dropped++
		j.batchMu.Unlock()
		j.logger.Warn("journal queue full, dropping notification", "name", n.Name)
	}
}

// Start begins consuming queued notifications.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go j.run()

	j.logger.Info("journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop unsubscribes, drains the queue and performs a final flush.
func (j *Journal) Stop(ctx context.Context) error {
	if j.cancel == nil {
		return ErrNotStarted
	}

	for _, u := range j.unsub {
		u()
	}
	j.unsub = nil

	j.cancel()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		j.logger.Warn("journal stop timed out")
		return ctx.Err()
	}

	// Anything recorded after the consumer exited
	for {
		select {
		case r := <-j.input:
			j.add(r)
			continue
		default:
		}
		break
	}
	j.flush(ctx)

	j.logger.Info("journal stopped")
	return nil
}

// Stats returns current statistics.
func (j *Journal) Stats() Stats {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	return j.stats
}

func (j *Journal) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case r := <-j.input:
			if j.add(r) {
				j.flush(j.ctx)
			}
		case <-ticker.C:
			j.flush(j.ctx)
		}
	}
}

// add appends r and reports whether the batch is full.
func (j *Journal) add(r row) bool {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	j.batch = append(j.batch, r)
	return len(j.batch) >= j.cfg.BatchSize
}

func (j *Journal) flush(ctx context.Context) {
	j.batchMu.Lock()
	if len(j.batch) == 0 {
		j.batchMu.Unlock()
		return
	}
	batch := j.batch
	j.batch = make([]row, 0, j.cfg.BatchSize)
	j.batchMu.Unlock()

	// The final flush runs after cancellation
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}

	start := time.Now()
	conflicts, err := j.insert(ctx, batch)
	if err != nil {
		j.logger.Error("batch insert failed", "error", err, "count", len(batch))
		j.batchMu.Lock()
		j.stats.Errors++
		j.batchMu.Unlock()
		return
	}

	j.batchMu.Lock()
	j.stats.Inserts += int64(len(batch) - conflicts)
	j.stats.Conflicts += int64(conflicts)
	j.stats.Flushes++
	j.batchMu.Unlock()

	j.logger.Debug("flushed notifications",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

func (j *Journal) insert(ctx context.Context, rows []row) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertSQL, r.ID, r.Name, r.Payload, r.ReceivedAt)
	}

	results := j.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	return conflicts, nil
}

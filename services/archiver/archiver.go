package archiver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"

	"expnet/core/events"
	"expnet/native/experience"
)

const schema = `
CREATE TABLE IF NOT EXISTS purchases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sequence INTEGER NOT NULL UNIQUE,
    experience TEXT NOT NULL,
    buyer TEXT NOT NULL,
    currency TEXT NOT NULL,
    quantity TEXT NOT NULL,
    total_paid TEXT NOT NULL,
    recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_purchases_experience ON purchases(experience);

CREATE TABLE IF NOT EXISTS event_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sequence INTEGER NOT NULL UNIQUE,
    type TEXT NOT NULL,
    experience TEXT,
    recorded_at INTEGER NOT NULL
);
`

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("archiver storage path must be configured")

// Archiver tails the settlement event stream into a sqlite archive so
// purchase history survives independently of the event journal's cursor
// window.
type Archiver struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initialises the archive using a sqlite-compatible DSN.
func Open(path string, logger *slog.Logger) (*Archiver, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Archiver{db: db, logger: logger}, nil
}

// Close releases database resources.
func (a *Archiver) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// LastSequence reports the highest archived event sequence, used as the
// resume cursor after a restart.
func (a *Archiver) LastSequence(ctx context.Context) (uint64, error) {
	if a == nil || a.db == nil {
		return 0, fmt.Errorf("archiver not configured")
	}
	row := a.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM event_log`)
	var last uint64
	if err := row.Scan(&last); err != nil {
		return 0, fmt.Errorf("query last sequence: %w", err)
	}
	return last, nil
}

// Run consumes records from the subscription until the context is cancelled.
// Replay of already-archived sequences is ignored via the UNIQUE constraint.
func (a *Archiver) Run(ctx context.Context, subscribe func(context.Context, uint64) (<-chan events.Record, func(), []events.Record, error)) error {
	if a == nil || a.db == nil {
		return fmt.Errorf("archiver not configured")
	}
	cursor, err := a.LastSequence(ctx)
	if err != nil {
		return err
	}
	records, cancel, backlog, err := subscribe(ctx, cursor)
	if err != nil {
		return err
	}
	defer cancel()

	for _, record := range backlog {
		a.archive(ctx, record)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record, ok := <-records:
			if !ok {
				return nil
			}
			a.archive(ctx, record)
		}
	}
}

func (a *Archiver) archive(ctx context.Context, record events.Record) {
	if err := a.insertEvent(ctx, record); err != nil {
		a.logger.Warn("failed to archive event", "sequence", record.Sequence, "type", record.Type, "error", err)
		return
	}
	if record.Type == experience.EventTypePassPurchased {
		if err := a.insertPurchase(ctx, record); err != nil {
			a.logger.Warn("failed to archive purchase", "sequence", record.Sequence, "error", err)
		}
	}
}

func (a *Archiver) insertEvent(ctx context.Context, record events.Record) error {
	_, err := a.db.ExecContext(ctx, `
        INSERT INTO event_log(sequence, type, experience, recorded_at)
        VALUES(?, ?, ?, ?)
        ON CONFLICT(sequence) DO NOTHING
    `, record.Sequence, record.Type, record.Attributes["experience"], record.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (a *Archiver) insertPurchase(ctx context.Context, record events.Record) error {
	attrs := record.Attributes
	_, err := a.db.ExecContext(ctx, `
        INSERT INTO purchases(sequence, experience, buyer, currency, quantity, total_paid, recorded_at)
        VALUES(?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(sequence) DO NOTHING
    `, record.Sequence, attrs["experience"], attrs["buyer"], attrs["currency"], attrs["quantity"], attrs["totalPaid"], record.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// Purchase is one archived purchase row.
type Purchase struct {
	Sequence   uint64
	Experience string
	Buyer      string
	Currency   string
	Quantity   string
	TotalPaid  string
	RecordedAt time.Time
}

// PurchasesByExperience lists archived purchases for an experience, newest
// first.
func (a *Archiver) PurchasesByExperience(ctx context.Context, addr string, limit int) ([]Purchase, error) {
	if a == nil || a.db == nil {
		return nil, fmt.Errorf("archiver not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx, `
        SELECT sequence, experience, buyer, currency, quantity, total_paid, recorded_at
        FROM purchases
        WHERE experience = ?
        ORDER BY sequence DESC
        LIMIT ?
    `, strings.TrimSpace(addr), limit)
	if err != nil {
		return nil, fmt.Errorf("query purchases: %w", err)
	}
	defer rows.Close()

	var out []Purchase
	for rows.Next() {
		var p Purchase
		var recorded int64
		if err := rows.Scan(&p.Sequence, &p.Experience, &p.Buyer, &p.Currency, &p.Quantity, &p.TotalPaid, &recorded); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		p.RecordedAt = time.Unix(recorded, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

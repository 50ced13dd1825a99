package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"expnet/core/types"
)

const subscriberBuffer = 64

// Record is a journaled event together with its replay cursor.
type Record struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	RecordedAt int64             `json:"recordedAt"`
}

// EventType implements the Event interface so records can be re-emitted.
func (r Record) EventType() string { return r.Type }

// Payloader is implemented by events carrying a raw types.Event payload.
type Payloader interface {
	Event() *types.Event
}

// Bus fans emitted events out to in-process subscribers and, when a journal is
// attached, persists them for cursor-based replay.
type Bus struct {
	mu      sync.Mutex
	journal *Journal
	nextSeq uint64
	subs    map[uint64]chan Record
	nextSub uint64
	nowFn   func() int64
	logger  *slog.Logger
}

// NewBus constructs a bus without persistence. Attach a journal with
// SetJournal before emitting if replay is required.
func NewBus() *Bus {
	return &Bus{
		nextSeq: 1,
		subs:    make(map[uint64]chan Record),
		nowFn:   func() int64 { return time.Now().Unix() },
		logger:  slog.Default(),
	}
}

// SetLogger overrides the logger used to report journal write failures.
func (b *Bus) SetLogger(logger *slog.Logger) {
	if b == nil || logger == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

// SetJournal attaches the persistent journal. The bus resumes sequence
// numbering after the last journaled record.
func (b *Bus) SetJournal(j *Journal) error {
	if b == nil || j == nil {
		return nil
	}
	last, err := j.LastSequence()
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journal = j
	b.nextSeq = last + 1
	return nil
}

// SetNowFunc overrides the record timestamp source for deterministic tests.
func (b *Bus) SetNowFunc(now func() int64) {
	if b == nil || now == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nowFn = now
}

// Emit implements the Emitter interface. Slow subscribers are skipped rather
// than blocking the settlement path.
func (b *Bus) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	record := Record{
		Sequence:   b.nextSeq,
		Type:       evt.EventType(),
		RecordedAt: b.nowFn(),
	}
	if payloader, ok := evt.(Payloader); ok {
		if payload := payloader.Event(); payload != nil {
			record.Attributes = cloneAttributes(payload.Attributes)
		}
	}
	b.nextSeq++
	if b.journal != nil {
		// Journal writes happen under the bus lock so sequence order on
		// disk matches fan-out order.
		if err := b.journal.Append(record); err != nil {
			b.logger.Error("event journal append failed",
				"sequence", record.Sequence, "type", record.Type, "error", err)
		}
	}
	// Fan-out stays under the lock: cancel closes subscriber channels under
	// this same lock, so a send never races a close. Sends are non-blocking,
	// so a slow subscriber drops records instead of stalling settlement.
	for _, ch := range b.subs {
		select {
		case ch <- record:
		default:
		}
	}
	b.mu.Unlock()
}

// Subscribe registers a live subscriber. When a journal is attached and a
// nonzero cursor is supplied, records after the cursor are returned as
// backlog so callers can replay before switching to the live channel.
func (b *Bus) Subscribe(ctx context.Context, cursor uint64) (<-chan Record, func(), []Record, error) {
	if b == nil {
		return nil, func() {}, nil, nil
	}
	b.mu.Lock()
	var backlog []Record
	if b.journal != nil {
		var err error
		backlog, err = b.journal.ReadFrom(cursor)
		if err != nil {
			b.mu.Unlock()
			return nil, nil, nil, err
		}
	}
	id := b.nextSub
	b.nextSub++
	ch := make(chan Record, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.mu.Unlock()
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return ch, cancel, backlog, nil
}

func cloneAttributes(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	clone := make(map[string]string, len(attrs))
	for k, v := range attrs {
		clone[k] = v
	}
	return clone
}

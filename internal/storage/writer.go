package storage

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// HistoryWriter buffers query records and writes them to the database
// off the request path. A full buffer drops entries rather than blocking
// query handling.
type HistoryWriter struct {
	db     *DB
	ch     chan *QueryRecord
	wg     sync.WaitGroup
	done   chan struct{}
	onDrop func()
}

// NewHistoryWriter creates a writer over db. onDrop is invoked once per
// record dropped to a full buffer; nil is allowed.
func NewHistoryWriter(db *DB, bufferSize int, onDrop func()) *HistoryWriter {
	if bufferSize < 1 {
		bufferSize = 10000
	}
	return &HistoryWriter{
		db:     db,
		ch:     make(chan *QueryRecord, bufferSize),
		done:   make(chan struct{}),
		onDrop: onDrop,
	}
}

func (w *HistoryWriter) Start() {
	w.wg.Add(1)
	go w.processLoop()
}

func (w *HistoryWriter) Log(rec *QueryRecord) {
	select {
	case w.ch <- rec:
	default:
		if w.onDrop != nil {
			w.onDrop()
		}
		log.Warn().Str("query_id", rec.ID).Msg("history buffer full, dropping record")
	}
}

func (w *HistoryWriter) Flush(timeout time.Duration) {
	close(w.done)

	doneCh := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		log.Info().Msg("history writer flushed")
	case <-time.After(timeout):
		log.Warn().Msg("history writer flush timed out")
	}
}

func (w *HistoryWriter) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case rec := <-w.ch:
			w.writeWithRetry(rec)
		case <-w.done:
			// Drain remaining entries
			for {
				select {
				case rec := <-w.ch:
					w.writeWithRetry(rec)
				default:
					return
				}
			}
		}
	}
}

func (w *HistoryWriter) writeWithRetry(rec *QueryRecord) {
	const maxRetries = 3

	for attempt := 0; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := w.db.LogQuery(ctx, rec)
		cancel()

		if err == nil {
			return
		}

		if attempt < maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			log.Warn().
				Err(err).
				Str("query_id", rec.ID).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("history write failed, retrying")
			time.Sleep(backoff)
		} else {
			log.Error().
				Err(err).
				Str("query_id", rec.ID).
				Msg("history write failed permanently after retries")
		}
	}
}

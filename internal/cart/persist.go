package cart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bakery/internal/common"
	"github.com/noah-isme/backend-bakery/internal/obs"
)

func encodeItems(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(items)
}

func decodeItems(data []byte) ([]LineItem, error) {
	var items []LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if err := validateRecords(items); err != nil {
		return nil, err
	}
	return items, nil
}

// loadItems reads a cart. Missing, unreadable and malformed data all yield an
// empty cart; the returned error only explains why.
func loadItems(ctx context.Context, storage Storage, key string) ([]LineItem, error) {
	if storage == nil {
		return nil, nil
	}
	data, found, err := storage.Load(ctx, key)
	if err != nil {
		return nil, common.StorageError("load cart", err)
	}
	if !found || len(data) == 0 {
		return nil, nil
	}
	items, err := decodeItems(data)
	if err != nil {
		return nil, common.StorageError("decode cart", err)
	}
	return items, nil
}

// writer saves cart snapshots in the background. Only the latest pending
// snapshot is kept, so a burst of mutations costs at most one extra write.
type writer struct {
	storage Storage
	key     string
	timeout time.Duration
	logger  zerolog.Logger
	pending chan []LineItem
	done    chan struct{}
}

func newWriter(storage Storage, key string, timeout time.Duration, logger zerolog.Logger) *writer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	w := &writer{
		storage: storage,
		key:     key,
		timeout: timeout,
		logger:  logger,
		pending: make(chan []LineItem, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// enqueue must only be called by one goroutine at a time; the store calls it
// while holding its mutex.
func (w *writer) enqueue(snapshot []LineItem) {
	select {
	case w.pending <- snapshot:
		return
	default:
	}
	select {
	case <-w.pending:
	default:
	}
	select {
	case w.pending <- snapshot:
	default:
	}
}

func (w *writer) run() {
	defer close(w.done)
	for snapshot := range w.pending {
		w.save(snapshot)
	}
}

func (w *writer) save(snapshot []LineItem) {
	data, err := encodeItems(snapshot)
	if err != nil {
		w.fail(common.StorageError("encode cart", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.storage.Save(ctx, w.key, data); err != nil {
		w.fail(common.StorageError("save cart", err))
	}
}

func (w *writer) fail(err error) {
	obs.ObserveCartStorageFailure("save")
	w.logger.Warn().Err(err).Str("key", w.key).Msg("cart persistence failed")
}

// close flushes the pending snapshot and stops the writer.
func (w *writer) close() {
	close(w.pending)
	<-w.done
}

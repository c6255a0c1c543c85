package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"example.com/mci/services/delivery/internal/cache"
	"example.com/mci/services/delivery/internal/fieldmap"
	"example.com/mci/services/delivery/internal/metrics"
	"example.com/mci/services/delivery/internal/model"
	"example.com/mci/services/delivery/internal/repository"
)

const (
	tableDeliveries = "deliveries"
	tableCustomers  = "customers"
)

// HistoryIndexer indexes completed deliveries for history search. Indexing
// is best effort and never blocks a status transition.
type HistoryIndexer interface {
	IndexDelivery(ctx context.Context, delivery *model.Delivery) error
}

// Snapshot is the partitioned view handed to the dashboard
type Snapshot struct {
	Active  []fieldmap.Document `json:"active"`
	History []fieldmap.Document `json:"history"`
	Source  string              `json:"source"` // remote, cache, empty, memory
}

// ImportError describes one failed row of a batch import
type ImportError struct {
	Record  string `json:"record"`
	Message string `json:"message"`
}

// ImportResult summarizes a batch import
type ImportResult struct {
	Success int           `json:"success"`
	Failed  int           `json:"failed"`
	Errors  []ImportError `json:"errors"`
}

// Orchestrator is the single entry point for loading and mutating delivery
// data. It reads the remote store first and falls back to the Redis backup,
// mirrors every successful write into the in-memory store, and queues writes
// for replay when the remote store is unreachable.
type Orchestrator struct {
	deliveryRepo  repository.DeliveryRepository
	customerRepo  repository.CustomerRepository
	cache         cache.CacheClient
	queue         *RetryQueue
	store         *Store
	indexer       HistoryIndexer
	log           *logrus.Logger
	remoteTimeout time.Duration

	opMu      sync.Mutex
	loading   bool
	importing bool
}

// NewOrchestrator creates a new synchronization orchestrator
func NewOrchestrator(
	deliveryRepo repository.DeliveryRepository,
	customerRepo repository.CustomerRepository,
	cacheClient cache.CacheClient,
	queue *RetryQueue,
	indexer HistoryIndexer,
	log *logrus.Logger,
	remoteTimeout time.Duration,
) *Orchestrator {
	if remoteTimeout <= 0 {
		remoteTimeout = 10 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		deliveryRepo:  deliveryRepo,
		customerRepo:  customerRepo,
		cache:         cacheClient,
		queue:         queue,
		store:         NewStore(),
		indexer:       indexer,
		log:           log,
		remoteTimeout: remoteTimeout,
	}
}

// Store exposes the in-memory state (read methods only are safe for callers)
func (o *Orchestrator) Store() *Store {
	return o.store
}

// Queue exposes the retry queue
func (o *Orchestrator) Queue() *RetryQueue {
	return o.queue
}

// Load fetches all deliveries owned by ownerID, remote first with a cache
// fallback, partitions them and refreshes the in-memory view. It never
// returns an error: failures degrade to the backup or to an explicit empty
// snapshot. A Load that arrives while another is in flight returns the
// current in-memory view instead of starting a second fetch.
func (o *Orchestrator) Load(ctx context.Context, ownerID string) Snapshot {
	o.opMu.Lock()
	if o.loading {
		o.opMu.Unlock()
		return o.memorySnapshot()
	}
	o.loading = true
	o.opMu.Unlock()

	defer func() {
		o.opMu.Lock()
		o.loading = false
		o.opMu.Unlock()
	}()

	started := time.Now()
	collector := metrics.GetMetricsCollector()
	defer func() {
		collector.RecordSyncOperation(metrics.SyncTypeLoad, time.Since(started))
	}()

	rctx, cancel := context.WithTimeout(ctx, o.remoteTimeout)
	defer cancel()

	deliveries, err := o.deliveryRepo.ListByOwner(rctx, ownerID)
	if err != nil {
		o.log.WithError(err).Warn("Remote fetch failed, falling back to cache backup")
		collector.IncrementCounter(metrics.CounterCacheFallbacks)
		return o.loadFromBackup(ctx, ownerID)
	}

	active, history := model.Partition(deliveries)

	// Back up the active set so the next remote outage still has data.
	if err := o.cache.SetActiveDeliveries(ctx, ownerID, active); err != nil {
		o.log.WithError(err).Warn("Failed to write active-deliveries backup")
		collector.RecordError(metrics.ErrorTypeCache)
	}

	o.store.Replace(active, history)
	o.updateGauges()
	collector.IncrementCounter(metrics.CounterDeliveriesLoaded)

	return Snapshot{
		Active:  docList(active),
		History: docList(history),
		Source:  "remote",
	}
}

// loadFromBackup serves the last backed-up active set. History cannot be
// reconstructed from the backup; it comes back empty until the remote store
// is reachable again.
func (o *Orchestrator) loadFromBackup(ctx context.Context, ownerID string) Snapshot {
	cached, err := o.cache.GetActiveDeliveries(ctx, ownerID)
	if err != nil {
		if err != redis.Nil {
			o.log.WithError(err).Warn("Failed to read active-deliveries backup")
			metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeCache)
		}
		o.store.Replace(nil, nil)
		o.updateGauges()
		return Snapshot{Active: []fieldmap.Document{}, History: []fieldmap.Document{}, Source: "empty"}
	}

	if len(cached) == 0 {
		o.store.Replace(nil, nil)
		o.updateGauges()
		return Snapshot{Active: []fieldmap.Document{}, History: []fieldmap.Document{}, Source: "empty"}
	}

	// Re-partition even though the backup only holds active records; the
	// status field stays authoritative.
	active, history := model.Partition(cached)
	o.store.Replace(active, history)
	o.updateGauges()

	return Snapshot{
		Active:  docList(active),
		History: docList(history),
		Source:  "cache",
	}
}

// Add inserts a new delivery. A DR number colliding with an existing record
// of the same owner is disambiguated with a time-derived suffix before
// insert; a uniqueness violation that still slips through (a race) is
// retried exactly once with a fresh suffix. Connectivity failures queue the
// insert for replay and re-raise the error.
func (o *Orchestrator) Add(ctx context.Context, ownerID string, doc fieldmap.Document) (fieldmap.Document, error) {
	started := time.Now()
	collector := metrics.GetMetricsCollector()

	d, err := fieldmap.DecodeDelivery(doc)
	if err != nil {
		collector.RecordError(metrics.ErrorTypeValidation)
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	d.ID = 0
	d.UserID = ownerID

	if d.DRNumber == "" {
		d.DRNumber = fieldmap.GenerateDRNumber(time.Now())
	}
	if err := validateDelivery(d); err != nil {
		collector.RecordError(metrics.ErrorTypeValidation)
		return nil, err
	}

	rctx, cancel := context.WithTimeout(ctx, o.remoteTimeout)
	defer cancel()

	baseDR := d.DRNumber
	exists, err := o.deliveryRepo.DRNumberExists(rctx, ownerID, baseDR)
	if err != nil {
		return nil, o.queueInsert(d, err)
	}
	if exists {
		d.DRNumber = suffixDR(baseDR)
		o.log.WithFields(logrus.Fields{
			"dr_number": baseDR,
			"unique":    d.DRNumber,
		}).Warn("DR number conflict detected, using unique DR number")
	}

	created, err := o.deliveryRepo.Create(rctx, d)
	if err != nil {
		if repository.IsDuplicateKey(err) {
			// Lost the race on the uniqueness pre-check. One more try
			// with a fresh suffix, then give up and surface.
			d.DRNumber = suffixDR(baseDR)
			created, err = o.deliveryRepo.Create(rctx, d)
			if err != nil {
				collector.RecordError(metrics.ErrorTypeConflict)
				return nil, fmt.Errorf("dr number %q: %w", baseDR, repository.ErrDuplicateKey)
			}
		} else {
			return nil, o.queueInsert(d, err)
		}
	}

	o.store.Upsert(created)
	o.updateGauges()
	o.refreshBackup(ctx, ownerID)

	collector.IncrementCounter(metrics.CounterDeliveriesCreated)
	collector.RecordSyncOperation(metrics.SyncTypeCreate, time.Since(started))

	return fieldmap.DeliveryDocument(created), nil
}

// Update applies a partial update to a delivery. Connectivity failures queue
// the update for replay and re-raise the error.
func (o *Orchestrator) Update(ctx context.Context, ownerID string, id interface{}, fields fieldmap.Document) (fieldmap.Document, error) {
	recordID, ok := fieldmap.ParseID(id)
	if !ok {
		return nil, repository.ErrNotFound
	}

	row := fieldmap.ToRemoteDelivery(fields)
	delete(row, "id")
	delete(row, "user_id")
	delete(row, "created_at")
	if len(row) == 0 {
		return nil, fmt.Errorf("%w: no updatable fields", ErrMalformedRecord)
	}

	rctx, cancel := context.WithTimeout(ctx, o.remoteTimeout)
	defer cancel()

	updated, err := o.deliveryRepo.UpdateFields(rctx, ownerID, recordID, row)
	if err != nil {
		if err == repository.ErrNotFound || repository.IsDuplicateKey(err) {
			return nil, err
		}
		o.queue.Enqueue(PendingOperation{
			Kind:     OpUpdate,
			Table:    tableDeliveries,
			OwnerID:  ownerID,
			RecordID: recordID,
			Payload:  row,
		})
		return nil, err
	}

	o.store.Upsert(updated)
	o.updateGauges()
	o.refreshBackup(ctx, ownerID)

	collector := metrics.GetMetricsCollector()
	collector.IncrementCounter(metrics.CounterDeliveriesUpdated)

	return fieldmap.DeliveryDocument(updated), nil
}

// Remove deletes a delivery. Deletion is an explicit administrative action;
// the normal lifecycle never removes records.
func (o *Orchestrator) Remove(ctx context.Context, ownerID string, id interface{}) error {
	recordID, ok := fieldmap.ParseID(id)
	if !ok {
		return repository.ErrNotFound
	}

	rctx, cancel := context.WithTimeout(ctx, o.remoteTimeout)
	defer cancel()

	if err := o.deliveryRepo.Delete(rctx, ownerID, recordID); err != nil {
		if err == repository.ErrNotFound {
			return err
		}
		o.queue.Enqueue(PendingOperation{
			Kind:     OpDelete,
			Table:    tableDeliveries,
			OwnerID:  ownerID,
			RecordID: recordID,
		})
		// Optimistically drop it locally; the replay finishes the job.
		o.store.Remove(recordID)
		o.updateGauges()
		return err
	}

	o.store.Remove(recordID)
	o.updateGauges()
	o.refreshBackup(ctx, ownerID)
	metrics.GetMetricsCollector().IncrementCounter(metrics.CounterDeliveriesDeleted)
	return nil
}

// ApplyStatus validates and applies a status change, persists it and moves
// the record between buckets. Completed deliveries are indexed for history
// search on a best-effort basis.
func (o *Orchestrator) ApplyStatus(ctx context.Context, ownerID string, id interface{}, status string) (fieldmap.Document, error) {
	recordID, ok := fieldmap.ParseID(id)
	if !ok {
		return nil, repository.ErrNotFound
	}

	target := model.DeliveryStatus(status)
	if !target.Recognized() {
		metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeValidation)
		return nil, fmt.Errorf("%q: %w", status, model.ErrInvalidStatus)
	}

	rctx, cancel := context.WithTimeout(ctx, o.remoteTimeout)
	defer cancel()

	current, err := o.deliveryRepo.GetByID(rctx, ownerID, recordID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		// Remote unreachable: fall back to the in-memory copy so the
		// operator still sees the change, and queue the write.
		current = o.store.Find(recordID)
		if current == nil {
			return nil, err
		}
		updated, applyErr := model.ApplyStatus(*current, target, time.Now())
		if applyErr != nil {
			return nil, applyErr
		}
		o.store.Upsert(&updated)
		o.updateGauges()
		o.queue.Enqueue(PendingOperation{
			Kind:     OpUpdate,
			Table:    tableDeliveries,
			OwnerID:  ownerID,
			RecordID: recordID,
			Payload:  statusPayload(&updated),
		})
		return fieldmap.DeliveryDocument(&updated), err
	}

	updated, err := model.ApplyStatus(*current, target, time.Now())
	if err != nil {
		return nil, err
	}

	persisted, err := o.deliveryRepo.Update(rctx, &updated)
	if err != nil {
		o.store.Upsert(&updated)
		o.updateGauges()
		o.queue.Enqueue(PendingOperation{
			Kind:     OpUpdate,
			Table:    tableDeliveries,
			OwnerID:  ownerID,
			RecordID: recordID,
			Payload:  statusPayload(&updated),
		})
		return fieldmap.DeliveryDocument(&updated), err
	}

	o.store.Upsert(persisted)
	o.updateGauges()
	o.refreshBackup(ctx, ownerID)

	if target.Terminal() && o.indexer != nil {
		if err := o.indexer.IndexDelivery(ctx, persisted); err != nil {
			o.log.WithError(err).Warn("Failed to index completed delivery")
		}
	}

	collector := metrics.GetMetricsCollector()
	collector.IncrementCounter(metrics.CounterDeliveriesUpdated)

	return fieldmap.DeliveryDocument(persisted), nil
}

// ImportMany inserts a batch of already-shaped delivery documents, one at a
// time so DR-number disambiguation sees previously imported rows. Individual
// failures are collected per row; the batch never aborts early. Only one
// import may run at a time.
func (o *Orchestrator) ImportMany(ctx context.Context, ownerID string, docs []fieldmap.Document) (ImportResult, error) {
	o.opMu.Lock()
	if o.importing {
		o.opMu.Unlock()
		return ImportResult{}, ErrImportInProgress
	}
	o.importing = true
	o.opMu.Unlock()

	defer func() {
		o.opMu.Lock()
		o.importing = false
		o.opMu.Unlock()
	}()

	started := time.Now()
	result := ImportResult{Errors: []ImportError{}}
	seenSerials := make(map[string]int)

	for i, doc := range docs {
		row := fieldmap.ToRemoteDelivery(doc)
		label := rowLabel(row, i)

		if serial, ok := row["serial_number"].(string); ok && serial != "" {
			if prev, dup := seenSerials[serial]; dup {
				result.Failed++
				result.Errors = append(result.Errors, ImportError{
					Record:  label,
					Message: fmt.Sprintf("duplicate serial number %q (already used by row %d)", serial, prev+1),
				})
				continue
			}
			seenSerials[serial] = i
		}

		if _, err := o.Add(ctx, ownerID, doc); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ImportError{Record: label, Message: err.Error()})
			continue
		}
		result.Success++
	}

	collector := metrics.GetMetricsCollector()
	collector.IncrementCounter(metrics.CounterDeliveriesImported)
	collector.RecordSyncOperation(metrics.SyncTypeImport, time.Since(started))

	o.log.WithFields(logrus.Fields{
		"success": result.Success,
		"failed":  result.Failed,
	}).Info("Batch import finished")

	return result, nil
}

// ChangeEvent is a row-change notification from the remote store
type ChangeEvent struct {
	Type   string            `json:"eventType"` // INSERT, UPDATE, DELETE
	Table  string            `json:"table"`
	Record fieldmap.Document `json:"new,omitempty"`
	Old    fieldmap.Document `json:"old,omitempty"`
}

// HandleRemoteChange applies a realtime change event to the in-memory view.
// It runs through the same decode and partition rules as Load, so a record
// whose status changed moves between buckets exactly as it would on a fresh
// fetch.
func (o *Orchestrator) HandleRemoteChange(ctx context.Context, event ChangeEvent) error {
	switch event.Table {
	case tableCustomers:
		return o.handleCustomerChange(event)
	case tableDeliveries, "":
		// deliveries is the default feed
	default:
		return fmt.Errorf("unknown table %q in change event", event.Table)
	}

	switch event.Type {
	case string(OpInsert), string(OpUpdate):
		d, err := fieldmap.DecodeDelivery(event.Record)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		o.store.Upsert(d)
	case string(OpDelete):
		doc := event.Old
		if doc == nil {
			doc = event.Record
		}
		if id, ok := fieldmap.ParseID(doc["id"]); ok {
			o.store.Remove(id)
		}
	default:
		return fmt.Errorf("unknown change event type %q", event.Type)
	}

	o.updateGauges()
	return nil
}

func (o *Orchestrator) handleCustomerChange(event ChangeEvent) error {
	switch event.Type {
	case string(OpInsert), string(OpUpdate):
		c, err := fieldmap.DecodeCustomer(event.Record)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		o.store.UpsertCustomer(c)
	case string(OpDelete):
		doc := event.Old
		if doc == nil {
			doc = event.Record
		}
		if id, ok := fieldmap.ParseID(doc["id"]); ok {
			o.store.RemoveCustomer(id)
		}
	default:
		return fmt.Errorf("unknown change event type %q", event.Type)
	}
	return nil
}

// ReplayPending drains the retry queue against the remote store. Called when
// connectivity is believed restored; ordering is preserved by the queue.
func (o *Orchestrator) ReplayPending(ctx context.Context) error {
	started := time.Now()
	err := o.queue.Drain(ctx, o.applyPending)
	metrics.GetMetricsCollector().RecordSyncOperation(metrics.SyncTypeReplay, time.Since(started))
	return err
}

// StartReplayLoop periodically replays queued writes until ctx is cancelled
func (o *Orchestrator) StartReplayLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if o.queue.Len() == 0 {
					continue
				}
				if err := o.ReplayPending(ctx); err != nil {
					o.log.WithError(err).Warn("Replay of pending operations stopped")
				}
			}
		}
	}()
}

func (o *Orchestrator) applyPending(ctx context.Context, op *PendingOperation) error {
	rctx, cancel := context.WithTimeout(ctx, o.remoteTimeout)
	defer cancel()

	switch op.Table {
	case tableCustomers:
		return o.applyPendingCustomer(rctx, op)
	}

	switch op.Kind {
	case OpInsert:
		d, err := fieldmap.DecodeDelivery(op.Payload)
		if err != nil {
			// Undecodable payloads can never succeed; drop via nil.
			o.log.WithError(err).Error("Discarding undecodable pending insert")
			return nil
		}
		d.ID = 0
		d.UserID = op.OwnerID
		created, err := o.deliveryRepo.Create(rctx, d)
		if err != nil {
			if repository.IsDuplicateKey(err) {
				d.DRNumber = suffixDR(d.DRNumber)
				created, err = o.deliveryRepo.Create(rctx, d)
			}
			if err != nil {
				return err
			}
		}
		o.store.Upsert(created)
		o.updateGauges()
		return nil
	case OpUpdate:
		updated, err := o.deliveryRepo.UpdateFields(rctx, op.OwnerID, op.RecordID, op.Payload)
		if err != nil {
			if err == repository.ErrNotFound {
				// Record deleted remotely in the meantime; nothing to replay.
				return nil
			}
			return err
		}
		o.store.Upsert(updated)
		o.updateGauges()
		return nil
	case OpDelete:
		if err := o.deliveryRepo.Delete(rctx, op.OwnerID, op.RecordID); err != nil {
			if err == repository.ErrNotFound {
				return nil
			}
			return err
		}
		return nil
	default:
		o.log.WithField("kind", op.Kind).Error("Discarding pending operation of unknown kind")
		return nil
	}
}

func (o *Orchestrator) applyPendingCustomer(ctx context.Context, op *PendingOperation) error {
	switch op.Kind {
	case OpInsert:
		c, err := fieldmap.DecodeCustomer(op.Payload)
		if err != nil {
			o.log.WithError(err).Error("Discarding undecodable pending customer insert")
			return nil
		}
		c.ID = 0
		c.UserID = op.OwnerID
		created, err := o.customerRepo.Create(ctx, c)
		if err != nil {
			return err
		}
		o.store.UpsertCustomer(created)
		return nil
	case OpUpdate:
		updated, err := o.customerRepo.UpdateFields(ctx, op.OwnerID, op.RecordID, op.Payload)
		if err != nil {
			if err == repository.ErrNotFound {
				return nil
			}
			return err
		}
		o.store.UpsertCustomer(updated)
		return nil
	case OpDelete:
		if err := o.customerRepo.Delete(ctx, op.OwnerID, op.RecordID); err != nil {
			if err == repository.ErrNotFound {
				return nil
			}
			return err
		}
		return nil
	default:
		return nil
	}
}

// queueInsert enqueues a failed insert for replay and returns the original
// error so the caller can notify the user.
func (o *Orchestrator) queueInsert(d *model.Delivery, cause error) error {
	o.queue.Enqueue(PendingOperation{
		Kind:    OpInsert,
		Table:   tableDeliveries,
		OwnerID: d.UserID,
		Payload: fieldmap.ToRemoteDelivery(fieldmap.DeliveryDocument(d)),
	})
	return cause
}

func (o *Orchestrator) refreshBackup(ctx context.Context, ownerID string) {
	if err := o.cache.SetActiveDeliveries(ctx, ownerID, o.store.Active()); err != nil {
		o.log.WithError(err).Warn("Failed to refresh active-deliveries backup")
		metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeCache)
	}
}

func (o *Orchestrator) updateGauges() {
	active, history := o.store.Counts()
	metrics.GetMetricsCollector().SetBucketSizes(active, history)
}

func (o *Orchestrator) memorySnapshot() Snapshot {
	return Snapshot{
		Active:  docList(o.store.Active()),
		History: docList(o.store.History()),
		Source:  "memory",
	}
}

// validateDelivery enforces the fields every booking must carry
func validateDelivery(d *model.Delivery) error {
	switch {
	case d.DRNumber == "":
		return fmt.Errorf("%w: DR number is required", ErrMalformedRecord)
	case d.CustomerName == "":
		return fmt.Errorf("%w: customer name is required", ErrMalformedRecord)
	case d.Origin == "":
		return fmt.Errorf("%w: origin is required", ErrMalformedRecord)
	case d.Destination == "":
		return fmt.Errorf("%w: destination is required", ErrMalformedRecord)
	}
	return nil
}

func suffixDR(base string) string {
	return fmt.Sprintf("%s-%d", base, time.Now().UnixMilli())
}

func statusPayload(d *model.Delivery) fieldmap.Document {
	payload := fieldmap.Document{
		"status":     string(d.Status),
		"updated_at": d.UpdatedAt,
	}
	if d.CompletedAt != nil {
		payload["completed_at"] = *d.CompletedAt
	}
	return payload
}

func docList(deliveries []*model.Delivery) []fieldmap.Document {
	docs := make([]fieldmap.Document, len(deliveries))
	for i, d := range deliveries {
		docs[i] = fieldmap.DeliveryDocument(d)
	}
	return docs
}

func rowLabel(row fieldmap.Document, index int) string {
	if dr, ok := row["dr_number"].(string); ok && dr != "" {
		return dr
	}
	return fmt.Sprintf("row %d", index+1)
}

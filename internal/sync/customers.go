package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"example.com/mci/services/delivery/internal/fieldmap"
	"example.com/mci/services/delivery/internal/metrics"
	"example.com/mci/services/delivery/internal/model"
	"example.com/mci/services/delivery/internal/repository"
)

// LoadCustomers fetches the customer directory, remote first with a cache
// fallback. Like Load it never errors; an unreachable remote degrades to the
// backup or an empty list.
func (o *Orchestrator) LoadCustomers(ctx context.Context, ownerID string) []fieldmap.Document {
	rctx, cancel := context.WithTimeout(ctx, o.remoteTimeout)
	defer cancel()

	customers, err := o.customerRepo.ListByOwner(rctx, ownerID)
	if err != nil {
		o.log.WithError(err).Warn("Remote customer fetch failed, falling back to cache backup")
		metrics.GetMetricsCollector().IncrementCounter(metrics.CounterCacheFallbacks)

		cached, cacheErr := o.cache.GetCustomers(ctx, ownerID)
		if cacheErr != nil {
			if cacheErr != redis.Nil {
				o.log.WithError(cacheErr).Warn("Failed to read customers backup")
			}
			return []fieldmap.Document{}
		}
		o.store.ReplaceCustomers(cached)
		return customerDocList(cached)
	}

	if err := o.cache.SetCustomers(ctx, ownerID, customers); err != nil {
		o.log.WithError(err).Warn("Failed to write customers backup")
		metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeCache)
	}

	o.store.ReplaceCustomers(customers)
	return customerDocList(customers)
}

// AddCustomer inserts a customer record. Connectivity failures queue the
// insert for replay and re-raise the error.
func (o *Orchestrator) AddCustomer(ctx context.Context, ownerID string, doc fieldmap.Document) (fieldmap.Document, error) {
	c, err := fieldmap.DecodeCustomer(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	c.ID = 0
	c.UserID = ownerID

	if c.Name == "" {
		metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeValidation)
		return nil, fmt.Errorf("%w: customer name is required", ErrMalformedRecord)
	}

	rctx, cancel := context.WithTimeout(ctx, o.remoteTimeout)
	defer cancel()

	created, err := o.customerRepo.Create(rctx, c)
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, repository.ErrDuplicateKey
		}
		o.queue.Enqueue(PendingOperation{
			Kind:    OpInsert,
			Table:   tableCustomers,
			OwnerID: ownerID,
			Payload: fieldmap.ToRemoteCustomer(fieldmap.CustomerDocument(c)),
		})
		return nil, err
	}

	o.store.UpsertCustomer(created)
	o.refreshCustomerBackup(ctx, ownerID)
	return fieldmap.CustomerDocument(created), nil
}

// UpdateCustomer applies a partial update to a customer record
func (o *Orchestrator) UpdateCustomer(ctx context.Context, ownerID string, id interface{}, fields fieldmap.Document) (fieldmap.Document, error) {
	recordID, ok := fieldmap.ParseID(id)
	if !ok {
		return nil, repository.ErrNotFound
	}

	row := fieldmap.ToRemoteCustomer(fields)
	delete(row, "id")
	delete(row, "user_id")
	delete(row, "created_at")
	if len(row) == 0 {
		return nil, fmt.Errorf("%w: no updatable fields", ErrMalformedRecord)
	}
	row["updated_at"] = time.Now().UTC()

	rctx, cancel := context.WithTimeout(ctx, o.remoteTimeout)
	defer cancel()

	updated, err := o.customerRepo.UpdateFields(rctx, ownerID, recordID, row)
	if err != nil {
		if err == repository.ErrNotFound || repository.IsDuplicateKey(err) {
			return nil, err
		}
		o.queue.Enqueue(PendingOperation{
			Kind:     OpUpdate,
			Table:    tableCustomers,
			OwnerID:  ownerID,
			RecordID: recordID,
			Payload:  row,
		})
		return nil, err
	}

	o.store.UpsertCustomer(updated)
	o.refreshCustomerBackup(ctx, ownerID)
	return fieldmap.CustomerDocument(updated), nil
}

// RemoveCustomer deletes a customer record
func (o *Orchestrator) RemoveCustomer(ctx context.Context, ownerID string, id interface{}) error {
	recordID, ok := fieldmap.ParseID(id)
	if !ok {
		return repository.ErrNotFound
	}

	rctx, cancel := context.WithTimeout(ctx, o.remoteTimeout)
	defer cancel()

	if err := o.customerRepo.Delete(rctx, ownerID, recordID); err != nil {
		if err == repository.ErrNotFound {
			return err
		}
		o.queue.Enqueue(PendingOperation{
			Kind:     OpDelete,
			Table:    tableCustomers,
			OwnerID:  ownerID,
			RecordID: recordID,
		})
		o.store.RemoveCustomer(recordID)
		return err
	}

	o.store.RemoveCustomer(recordID)
	o.refreshCustomerBackup(ctx, ownerID)
	return nil
}

func (o *Orchestrator) refreshCustomerBackup(ctx context.Context, ownerID string) {
	if err := o.cache.SetCustomers(ctx, ownerID, o.store.Customers()); err != nil {
		o.log.WithError(err).Warn("Failed to refresh customers backup")
		metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeCache)
	}
}

func customerDocList(customers []*model.Customer) []fieldmap.Document {
	docs := make([]fieldmap.Document, len(customers))
	for i, c := range customers {
		docs[i] = fieldmap.CustomerDocument(c)
	}
	return docs
}

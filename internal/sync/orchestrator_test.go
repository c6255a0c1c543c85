package sync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"example.com/mci/services/delivery/internal/fieldmap"
	"example.com/mci/services/delivery/internal/model"
	"example.com/mci/services/delivery/internal/repository"
)

// Mock repositories for testing

type MockDeliveryRepository struct {
	mock.Mock
}

// Create echoes the input delivery when the test configures Return(nil, nil),
// mirroring the real repository handing back the persisted record.
func (m *MockDeliveryRepository) Create(ctx context.Context, delivery *model.Delivery) (*model.Delivery, error) {
	args := m.Called(ctx, delivery)
	if ret, ok := args.Get(0).(*model.Delivery); ok && ret != nil {
		return ret, args.Error(1)
	}
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	if delivery.ID == 0 {
		delivery.ID = 100
	}
	return delivery, nil
}

func (m *MockDeliveryRepository) Update(ctx context.Context, delivery *model.Delivery) (*model.Delivery, error) {
	args := m.Called(ctx, delivery)
	if ret, ok := args.Get(0).(*model.Delivery); ok && ret != nil {
		return ret, args.Error(1)
	}
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	return delivery, nil
}

func (m *MockDeliveryRepository) UpdateFields(ctx context.Context, ownerID string, id uint, fields map[string]interface{}) (*model.Delivery, error) {
	args := m.Called(ctx, ownerID, id, fields)
	if ret, ok := args.Get(0).(*model.Delivery); ok {
		return ret, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDeliveryRepository) Delete(ctx context.Context, ownerID string, id uint) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

func (m *MockDeliveryRepository) GetByID(ctx context.Context, ownerID string, id uint) (*model.Delivery, error) {
	args := m.Called(ctx, ownerID, id)
	if ret, ok := args.Get(0).(*model.Delivery); ok {
		return ret, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDeliveryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Delivery, error) {
	args := m.Called(ctx, ownerID)
	if ret, ok := args.Get(0).([]*model.Delivery); ok {
		return ret, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDeliveryRepository) DRNumberExists(ctx context.Context, ownerID, drNumber string) (bool, error) {
	args := m.Called(ctx, ownerID, drNumber)
	return args.Bool(0), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Create(ctx context.Context, customer *model.Customer) (*model.Customer, error) {
	args := m.Called(ctx, customer)
	if ret, ok := args.Get(0).(*model.Customer); ok && ret != nil {
		return ret, args.Error(1)
	}
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	if customer.ID == 0 {
		customer.ID = 200
	}
	return customer, nil
}

func (m *MockCustomerRepository) Update(ctx context.Context, customer *model.Customer) (*model.Customer, error) {
	args := m.Called(ctx, customer)
	if ret, ok := args.Get(0).(*model.Customer); ok {
		return ret, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerRepository) UpdateFields(ctx context.Context, ownerID string, id uint, fields map[string]interface{}) (*model.Customer, error) {
	args := m.Called(ctx, ownerID, id, fields)
	if ret, ok := args.Get(0).(*model.Customer); ok {
		return ret, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerRepository) Delete(ctx context.Context, ownerID string, id uint) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, ownerID string, id uint) (*model.Customer, error) {
	args := m.Called(ctx, ownerID, id)
	if ret, ok := args.Get(0).(*model.Customer); ok {
		return ret, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Customer, error) {
	args := m.Called(ctx, ownerID)
	if ret, ok := args.Get(0).([]*model.Customer); ok {
		return ret, args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeCache is an in-memory CacheClient
type fakeCache struct {
	deliveries map[string][]*model.Delivery
	customers  map[string][]*model.Customer
	failReads  bool
	failWrites bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		deliveries: make(map[string][]*model.Delivery),
		customers:  make(map[string][]*model.Customer),
	}
}

func (f *fakeCache) GetActiveDeliveries(ctx context.Context, ownerID string) ([]*model.Delivery, error) {
	if f.failReads {
		return nil, errors.New("cache unavailable")
	}
	cached, ok := f.deliveries[ownerID]
	if !ok {
		return nil, redis.Nil
	}
	return cached, nil
}

func (f *fakeCache) SetActiveDeliveries(ctx context.Context, ownerID string, deliveries []*model.Delivery) error {
	if f.failWrites {
		return errors.New("cache unavailable")
	}
	f.deliveries[ownerID] = deliveries
	return nil
}

func (f *fakeCache) DeleteActiveDeliveries(ctx context.Context, ownerID string) error {
	delete(f.deliveries, ownerID)
	return nil
}

func (f *fakeCache) GetCustomers(ctx context.Context, ownerID string) ([]*model.Customer, error) {
	if f.failReads {
		return nil, errors.New("cache unavailable")
	}
	cached, ok := f.customers[ownerID]
	if !ok {
		return nil, redis.Nil
	}
	return cached, nil
}

func (f *fakeCache) SetCustomers(ctx context.Context, ownerID string, customers []*model.Customer) error {
	if f.failWrites {
		return errors.New("cache unavailable")
	}
	f.customers[ownerID] = customers
	return nil
}

func (f *fakeCache) FlushAll(ctx context.Context) error {
	f.deliveries = make(map[string][]*model.Delivery)
	f.customers = make(map[string][]*model.Customer)
	return nil
}

func newTestOrchestrator(deliveryRepo repository.DeliveryRepository, customerRepo repository.CustomerRepository, cache *fakeCache) *Orchestrator {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewOrchestrator(deliveryRepo, customerRepo, cache, NewRetryQueue(5), nil, log, time.Second)
}

func delivery(id uint, dr string, status model.DeliveryStatus) *model.Delivery {
	return &model.Delivery{ID: id, UserID: "owner-1", DRNumber: dr, Status: status}
}

// A healthy remote fetch partitions records and backs up the active set
func TestLoadPartitionsAndBacksUp(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	cache := newFakeCache()
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), cache)

	deliveryRepo.On("ListByOwner", mock.Anything, "owner-1").Return([]*model.Delivery{
		delivery(1, "DR1", model.StatusInTransit),
		delivery(2, "DR2", model.StatusCompleted),
		delivery(3, "DR3", model.StatusCancelled),
	}, nil)

	snapshot := o.Load(context.Background(), "owner-1")

	require.Equal(t, "remote", snapshot.Source)
	require.Len(t, snapshot.Active, 2)
	require.Len(t, snapshot.History, 1)
	require.Equal(t, "DR2", snapshot.History[0]["drNumber"])

	// Active set was backed up for the next outage
	require.Len(t, cache.deliveries["owner-1"], 2)
	deliveryRepo.AssertExpectations(t)
}

// A remote outage degrades to the backup cache
func TestLoadFallsBackToCache(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	cache := newFakeCache()
	cache.deliveries["owner-1"] = []*model.Delivery{
		delivery(1, "DR1", model.StatusActive),
		delivery(2, "DR2", model.StatusOnSchedule),
	}
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), cache)

	deliveryRepo.On("ListByOwner", mock.Anything, "owner-1").Return(nil, errors.New("dial tcp: connection refused"))

	snapshot := o.Load(context.Background(), "owner-1")

	require.Equal(t, "cache", snapshot.Source)
	require.Len(t, snapshot.Active, 2)
	require.Empty(t, snapshot.History)
}

// Remote and cache both down yields an explicit empty view, not an error
func TestLoadDegradesToEmpty(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	cache := newFakeCache()
	cache.failReads = true
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), cache)

	deliveryRepo.On("ListByOwner", mock.Anything, "owner-1").Return(nil, errors.New("dial tcp: connection refused"))

	snapshot := o.Load(context.Background(), "owner-1")

	require.Equal(t, "empty", snapshot.Source)
	require.Empty(t, snapshot.Active)
	require.Empty(t, snapshot.History)
}

// A Load racing another Load serves the in-memory view
func TestLoadSingleFlight(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), newFakeCache())

	o.opMu.Lock()
	o.loading = true
	o.opMu.Unlock()

	snapshot := o.Load(context.Background(), "owner-1")

	require.Equal(t, "memory", snapshot.Source)
	deliveryRepo.AssertNotCalled(t, "ListByOwner", mock.Anything, mock.Anything)
}

// A colliding DR number is suffixed before insert
func TestAddDisambiguatesDRNumber(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), newFakeCache())

	deliveryRepo.On("DRNumberExists", mock.Anything, "owner-1", "DR5007").Return(true, nil)
	deliveryRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Delivery")).Return(nil, nil)

	doc, err := o.Add(context.Background(), "owner-1", fieldmap.Document{
		"drNumber":     "DR5007",
		"customerName": "Acme Ltd",
		"origin":       "Nairobi",
		"destination":  "Kisumu",
	})

	require.NoError(t, err)
	dr := doc["drNumber"].(string)
	require.True(t, strings.HasPrefix(dr, "DR5007-"), "expected suffixed DR number, got %s", dr)
	deliveryRepo.AssertExpectations(t)
}

// A uniqueness race on insert retries exactly once with a fresh suffix
func TestAddRetriesOnceOnDuplicateKey(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), newFakeCache())

	deliveryRepo.On("DRNumberExists", mock.Anything, "owner-1", "DR1").Return(false, nil)
	deliveryRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Delivery")).Return(nil, gorm.ErrDuplicatedKey).Once()
	deliveryRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Delivery")).Return(nil, nil).Once()

	doc, err := o.Add(context.Background(), "owner-1", fieldmap.Document{
		"drNumber":     "DR1",
		"customerName": "Acme Ltd",
		"origin":       "Nairobi",
		"destination":  "Kisumu",
	})

	require.NoError(t, err)
	require.True(t, strings.HasPrefix(doc["drNumber"].(string), "DR1-"))
	deliveryRepo.AssertNumberOfCalls(t, "Create", 2)
}

// Both insert attempts losing the race surfaces a conflict
func TestAddSurfacesRepeatedDuplicate(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), newFakeCache())

	deliveryRepo.On("DRNumberExists", mock.Anything, "owner-1", "DR1").Return(false, nil)
	deliveryRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Delivery")).Return(nil, gorm.ErrDuplicatedKey)

	_, err := o.Add(context.Background(), "owner-1", fieldmap.Document{
		"drNumber":     "DR1",
		"customerName": "Acme Ltd",
		"origin":       "Nairobi",
		"destination":  "Kisumu",
	})

	require.ErrorIs(t, err, repository.ErrDuplicateKey)
	deliveryRepo.AssertNumberOfCalls(t, "Create", 2)
	require.Equal(t, 0, o.Queue().Len())
}

// A connectivity failure queues the insert and re-raises the error
func TestAddQueuesOnConnectivityFailure(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), newFakeCache())

	boom := errors.New("dial tcp: connection refused")
	deliveryRepo.On("DRNumberExists", mock.Anything, "owner-1", "DR1").Return(false, boom)

	_, err := o.Add(context.Background(), "owner-1", fieldmap.Document{
		"drNumber":     "DR1",
		"customerName": "Acme Ltd",
		"origin":       "Nairobi",
		"destination":  "Kisumu",
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, o.Queue().Len())

	pending := o.Queue().Pending()
	require.Equal(t, OpInsert, pending[0].Kind)
	require.Equal(t, "deliveries", pending[0].Table)
}

// Records missing required fields are rejected before touching the remote
func TestAddRejectsMalformedRecord(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), newFakeCache())

	_, err := o.Add(context.Background(), "owner-1", fieldmap.Document{
		"drNumber": "DR1",
		"origin":   "Nairobi",
	})

	require.ErrorIs(t, err, ErrMalformedRecord)
	deliveryRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	require.Equal(t, 0, o.Queue().Len())
}

// A completing status transition stamps timestamps and moves the record to
// the history bucket
func TestApplyStatusMovesToHistory(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), newFakeCache())

	current := delivery(1, "DR1", model.StatusInTransit)
	o.Store().Upsert(current)

	deliveryRepo.On("GetByID", mock.Anything, "owner-1", uint(1)).Return(current, nil)
	deliveryRepo.On("Update", mock.Anything, mock.AnythingOfType("*model.Delivery")).Return(nil, nil)

	doc, err := o.ApplyStatus(context.Background(), "owner-1", "1", "Completed")

	require.NoError(t, err)
	require.Equal(t, "Completed", doc["status"])
	require.NotEmpty(t, doc["completedAt"])
	require.NotEmpty(t, doc["completedDate"])
	require.NotEmpty(t, doc["completedDateTime"])

	active, history := o.Store().Counts()
	require.Equal(t, 0, active)
	require.Equal(t, 1, history)
}

// An unrecognized status is rejected without a remote call
func TestApplyStatusRejectsUnknown(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), newFakeCache())

	_, err := o.ApplyStatus(context.Background(), "owner-1", "1", "Teleported")

	require.ErrorIs(t, err, model.ErrInvalidStatus)
	deliveryRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
}

// A batch import rejects in-batch duplicate serial numbers but keeps going
func TestImportManyRejectsDuplicateSerials(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), newFakeCache())

	deliveryRepo.On("DRNumberExists", mock.Anything, "owner-1", mock.Anything).Return(false, nil)
	deliveryRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Delivery")).Return(nil, nil)

	result, err := o.ImportMany(context.Background(), "owner-1", []fieldmap.Document{
		{"drNumber": "DR1", "customerName": "A", "origin": "X", "destination": "Y", "serialNumber": "SN-1"},
		{"drNumber": "DR2", "customerName": "B", "origin": "X", "destination": "Y", "serialNumber": "SN-2"},
		{"drNumber": "DR3", "customerName": "C", "origin": "X", "destination": "Y", "serialNumber": "SN-1"},
	})

	require.NoError(t, err)
	require.Equal(t, 2, result.Success)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "DR3", result.Errors[0].Record)
	require.Contains(t, result.Errors[0].Message, "duplicate serial number")
}

// Only one import may run at a time
func TestImportManySingleFlight(t *testing.T) {
	o := newTestOrchestrator(new(MockDeliveryRepository), new(MockCustomerRepository), newFakeCache())

	o.opMu.Lock()
	o.importing = true
	o.opMu.Unlock()

	_, err := o.ImportMany(context.Background(), "owner-1", []fieldmap.Document{{"drNumber": "DR1"}})
	require.ErrorIs(t, err, ErrImportInProgress)
}

// Change events flow through the same decode and partition rules as a fetch
func TestHandleRemoteChange(t *testing.T) {
	o := newTestOrchestrator(new(MockDeliveryRepository), new(MockCustomerRepository), newFakeCache())

	err := o.HandleRemoteChange(context.Background(), ChangeEvent{
		Type:   "INSERT",
		Table:  "deliveries",
		Record: fieldmap.Document{"id": float64(1), "dr_number": "DR1", "status": "In Transit"},
	})
	require.NoError(t, err)

	active, history := o.Store().Counts()
	require.Equal(t, 1, active)
	require.Equal(t, 0, history)

	// The same record completing moves buckets
	err = o.HandleRemoteChange(context.Background(), ChangeEvent{
		Type:   "UPDATE",
		Table:  "deliveries",
		Record: fieldmap.Document{"id": float64(1), "dr_number": "DR1", "status": "Delivered"},
	})
	require.NoError(t, err)

	active, history = o.Store().Counts()
	require.Equal(t, 0, active)
	require.Equal(t, 1, history)

	// And a delete clears it
	err = o.HandleRemoteChange(context.Background(), ChangeEvent{
		Type: "DELETE",
		Old:  fieldmap.Document{"id": float64(1)},
	})
	require.NoError(t, err)

	active, history = o.Store().Counts()
	require.Equal(t, 0, active+history)
}

// Replay applies queued operations against the repository in order
func TestReplayPendingAppliesQueuedWrites(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), newFakeCache())

	o.Queue().Enqueue(PendingOperation{
		Kind:    OpInsert,
		Table:   "deliveries",
		OwnerID: "owner-1",
		Payload: fieldmap.Document{"dr_number": "DR1", "customer_name": "Acme", "origin": "X", "destination": "Y"},
	})
	o.Queue().Enqueue(PendingOperation{
		Kind:     OpDelete,
		Table:    "deliveries",
		OwnerID:  "owner-1",
		RecordID: 9,
	})

	deliveryRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Delivery")).Return(nil, nil)
	deliveryRepo.On("Delete", mock.Anything, "owner-1", uint(9)).Return(nil)

	require.NoError(t, o.ReplayPending(context.Background()))
	require.Equal(t, 0, o.Queue().Len())
	deliveryRepo.AssertExpectations(t)
}

// A replayed update whose record vanished remotely is treated as done
func TestReplayPendingSkipsVanishedRecords(t *testing.T) {
	deliveryRepo := new(MockDeliveryRepository)
	o := newTestOrchestrator(deliveryRepo, new(MockCustomerRepository), newFakeCache())

	o.Queue().Enqueue(PendingOperation{
		Kind:     OpUpdate,
		Table:    "deliveries",
		OwnerID:  "owner-1",
		RecordID: 5,
		Payload:  fieldmap.Document{"status": "Active"},
	})

	deliveryRepo.On("UpdateFields", mock.Anything, "owner-1", uint(5), mock.Anything).Return(nil, repository.ErrNotFound)

	require.NoError(t, o.ReplayPending(context.Background()))
	require.Equal(t, 0, o.Queue().Len())
}

// Customer directory loads fall back to the backup like deliveries do
func TestLoadCustomersFallsBack(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	cache := newFakeCache()
	cache.customers["owner-1"] = []*model.Customer{{ID: 1, Name: "Acme"}}
	o := newTestOrchestrator(new(MockDeliveryRepository), customerRepo, cache)

	customerRepo.On("ListByOwner", mock.Anything, "owner-1").Return(nil, errors.New("dial tcp: connection refused"))

	docs := o.LoadCustomers(context.Background(), "owner-1")
	require.Len(t, docs, 1)
	require.Equal(t, "Acme", docs[0]["name"])
}

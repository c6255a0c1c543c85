package model

import (
	"time"
)

// Delivery represents one shipment tracked by the dashboard. Columns use the
// remote store's snake_case convention; the JSON tags are the remote wire
// shape. Client-facing camelCase documents are produced by the fieldmap
// package, never here.
type Delivery struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	UserID           string         `json:"user_id" gorm:"column:user_id;index;uniqueIndex:idx_deliveries_dr_owner"`
	DRNumber         string         `json:"dr_number" gorm:"column:dr_number;uniqueIndex:idx_deliveries_dr_owner"`
	CustomerName     string         `json:"customer_name"`
	VendorNumber     string         `json:"vendor_number"`
	Origin           string         `json:"origin"`
	Destination      string         `json:"destination"`
	TruckType        string         `json:"truck_type"`
	TruckPlateNumber string         `json:"truck_plate_number"`
	Distance         string         `json:"distance"`
	ItemNumber       string         `json:"item_number"`
	ItemDescription  string         `json:"item_description"`
	SerialNumber     string         `json:"serial_number"`
	MobileNumber     string         `json:"mobile_number"`
	Status           DeliveryStatus `json:"status"`
	AdditionalCosts  float64        `json:"additional_costs"`
	DeliveryDate     string         `json:"delivery_date"`
	CreatedBy        string         `json:"created_by"`
	Attributes       []byte         `json:"attributes,omitempty" gorm:"type:jsonb"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	CompletedAt      *time.Time     `json:"completed_at"`

	// Display-only representations of CompletedAt, derived on transition.
	// Not persisted; the remote store keeps only the instant.
	CompletedDate     string `json:"completed_date,omitempty" gorm:"-"`
	CompletedDateTime string `json:"completed_date_time,omitempty" gorm:"-"`
}

// Customer represents a customer record. No status lifecycle.
type Customer struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        string    `json:"user_id" gorm:"column:user_id;index"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	MobileNumber  string    `json:"mobile_number"`
	Address       string    `json:"address"`
	VendorNumber  string    `json:"vendor_number"`
	ContactPerson string    `json:"contact_person"`
	Attributes    []byte    `json:"attributes,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DeliveryStatus defines the status of a delivery
type DeliveryStatus string

const (
	// StatusOnSchedule is the default status for new bookings
	StatusOnSchedule DeliveryStatus = "On Schedule"
	// StatusActive represents a delivery in progress
	StatusActive DeliveryStatus = "Active"
	// StatusInTransit represents a delivery on the road
	StatusInTransit DeliveryStatus = "In Transit"
	// StatusOutForDelivery represents the final leg of a delivery
	StatusOutForDelivery DeliveryStatus = "Out for Delivery"
	// StatusPending represents a delivery awaiting dispatch
	StatusPending DeliveryStatus = "Pending"
	// StatusCompleted represents a finished delivery
	StatusCompleted DeliveryStatus = "Completed"
	// StatusSigned represents a delivery with a captured proof-of-delivery signature
	StatusSigned DeliveryStatus = "Signed"
	// StatusDelivered represents a delivery confirmed at the destination
	StatusDelivered DeliveryStatus = "Delivered"
	// StatusCancelled represents a cancelled delivery. Cancelled deliveries
	// stay in the active bucket: operators still need to see them.
	StatusCancelled DeliveryStatus = "Cancelled"
)

// statusSet holds the recognized status vocabulary.
var statusSet = map[DeliveryStatus]struct{}{
	StatusOnSchedule:     {},
	StatusActive:         {},
	StatusInTransit:      {},
	StatusOutForDelivery: {},
	StatusPending:        {},
	StatusCompleted:      {},
	StatusSigned:         {},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

// Recognized reports whether s is part of the status vocabulary.
func (s DeliveryStatus) Recognized() bool {
	_, ok := statusSet[s]
	return ok
}

// Terminal reports whether s places a delivery in the history bucket.
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusSigned, StatusDelivered:
		return true
	}
	return false
}

// String returns the status as a plain string.
func (s DeliveryStatus) String() string {
	return string(s)
}

// StatusFromString converts a string to a DeliveryStatus. Unknown or empty
// values fall back to On Schedule so that every record lands in a bucket.
func StatusFromString(status string) DeliveryStatus {
	s := DeliveryStatus(status)
	if s.Recognized() {
		return s
	}
	return StatusOnSchedule
}

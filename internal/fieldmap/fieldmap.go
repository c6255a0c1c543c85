package fieldmap

import (
	"strconv"
	"strings"
	"time"
)

// Document is a schemaless record as exchanged with the dashboard client and
// the backup cache. Keys follow the client's camelCase convention, but
// historical payloads mix in snake_case and legacy spellings; the maps below
// absorb all of them.
type Document map[string]interface{}

// deliveryFieldMap maps every known client spelling of a delivery field to
// its remote column name. Unknown keys are passed through unchanged.
var deliveryFieldMap = map[string]string{
	"id":          "id",
	"delivery_id": "id",
	"deliveryId":  "id",

	"drNumber":  "dr_number",
	"dr_number": "dr_number",
	"DR":        "dr_number",

	"customerName":  "customer_name",
	"customer_name": "customer_name",
	"Customer":      "customer_name",

	"vendorNumber":  "vendor_number",
	"vendor_number": "vendor_number",
	"Vendor":        "vendor_number",

	"origin":      "origin",
	"destination": "destination",

	"truckType":          "truck_type",
	"truck_type":         "truck_type",
	"truckPlateNumber":   "truck_plate_number",
	"truck_plate_number": "truck_plate_number",
	"truckPlate":         "truck_plate_number",

	"deliveryDate":  "delivery_date",
	"delivery_date": "delivery_date",

	"completedDate":      "completed_at",
	"completed_date":     "completed_at",
	"completedDateTime":  "completed_at",
	"completedTimestamp": "completed_at",
	"completedAt":        "completed_at",
	"completed_at":       "completed_at",

	"additionalCosts":  "additional_costs",
	"additional_costs": "additional_costs",

	"distance": "distance",
	"status":   "status",

	"itemNumber":       "item_number",
	"item_number":      "item_number",
	"itemDescription":  "item_description",
	"item_description": "item_description",
	"serialNumber":     "serial_number",
	"serial_number":    "serial_number",
	"mobileNumber":     "mobile_number",
	"mobile_number":    "mobile_number",

	"timestamp":    "created_at",
	"createdAt":    "created_at",
	"created_at":   "created_at",
	"lastModified": "updated_at",
	"updatedAt":    "updated_at",
	"updated_at":   "updated_at",
	"createdBy":    "created_by",
	"created_by":   "created_by",
	"userId":       "user_id",
	"user_id":      "user_id",
}

// deliveryLocalNames maps remote column names back to the canonical client
// spelling. One canonical name per column, so remote→local→remote round-trips
// are stable.
var deliveryLocalNames = map[string]string{
	"id":                 "id",
	"dr_number":          "drNumber",
	"customer_name":      "customerName",
	"vendor_number":      "vendorNumber",
	"origin":             "origin",
	"destination":        "destination",
	"truck_type":         "truckType",
	"truck_plate_number": "truckPlateNumber",
	"delivery_date":      "deliveryDate",
	"completed_at":       "completedAt",
	"additional_costs":   "additionalCosts",
	"distance":           "distance",
	"status":             "status",
	"item_number":        "itemNumber",
	"item_description":   "itemDescription",
	"serial_number":      "serialNumber",
	"mobile_number":      "mobileNumber",
	"created_at":         "createdAt",
	"updated_at":         "lastModified",
	"created_by":         "createdBy",
	"user_id":            "userId",
}

var customerFieldMap = map[string]string{
	"id":          "id",
	"customer_id": "id",
	"customerId":  "id",

	"name":          "name",
	"customerName":  "name",
	"customer_name": "name",

	"email":          "email",
	"phone":          "phone",
	"mobile":         "mobile_number",
	"mobileNumber":   "mobile_number",
	"mobile_number":  "mobile_number",
	"address":        "address",
	"vendorNumber":   "vendor_number",
	"vendor_number":  "vendor_number",
	"contactPerson":  "contact_person",
	"contact_person": "contact_person",
	"userId":         "user_id",
	"user_id":        "user_id",
}

var customerLocalNames = map[string]string{
	"id":             "id",
	"name":           "name",
	"email":          "email",
	"phone":          "phone",
	"mobile_number":  "mobileNumber",
	"address":        "address",
	"vendor_number":  "vendorNumber",
	"contact_person": "contactPerson",
	"user_id":        "userId",
}

// ToRemoteDelivery converts a delivery document to the remote row shape.
// Recognized keys are renamed, cost fields coerced to numbers and date-like
// values normalized; everything else passes through untouched.
func ToRemoteDelivery(doc Document) Document {
	if doc == nil {
		return nil
	}

	mapped := make(Document, len(doc))
	for key, value := range doc {
		remote, ok := deliveryFieldMap[key]
		if !ok {
			mapped[key] = value
			continue
		}

		switch {
		case remote == "additional_costs":
			mapped[remote] = CoerceCost(value)
		case isDateColumn(remote):
			mapped[remote] = NormalizeDate(value)
		default:
			mapped[remote] = value
		}
	}
	return mapped
}

// ToLocalDelivery converts a remote delivery row to the canonical client
// document shape. The semantic inverse of ToRemoteDelivery on the field-name
// dimension: values of recognized fields survive a round-trip unchanged.
func ToLocalDelivery(row Document) Document {
	if row == nil {
		return nil
	}

	mapped := make(Document, len(row))
	for key, value := range row {
		if local, ok := deliveryLocalNames[key]; ok {
			mapped[local] = value
		} else {
			mapped[key] = value
		}
	}
	return mapped
}

// ToRemoteCustomer converts a customer document to the remote row shape.
func ToRemoteCustomer(doc Document) Document {
	if doc == nil {
		return nil
	}

	mapped := make(Document, len(doc))
	for key, value := range doc {
		if remote, ok := customerFieldMap[key]; ok {
			mapped[remote] = value
		} else {
			mapped[key] = value
		}
	}
	return mapped
}

// ToLocalCustomer converts a remote customer row to the client document shape.
func ToLocalCustomer(row Document) Document {
	if row == nil {
		return nil
	}

	mapped := make(Document, len(row))
	for key, value := range row {
		if local, ok := customerLocalNames[key]; ok {
			mapped[local] = value
		} else {
			mapped[key] = value
		}
	}
	return mapped
}

func isDateColumn(column string) bool {
	return strings.Contains(column, "_date") || strings.HasSuffix(column, "_at")
}

// dateLayouts lists the formats seen in uploads and legacy cached records.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006, 3:04:05 PM",
	"01/02/2006",
}

// NormalizeDate normalizes a date-like value to an RFC3339 UTC string.
// Unparsable values are returned unchanged rather than dropped: a bad date is
// still more useful on screen than a blank.
func NormalizeDate(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(time.RFC3339)
	case string:
		if v == "" {
			return v
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
		return v
	default:
		return value
	}
}

// CoerceCost coerces a cost value to a non-negative float64, defaulting to 0
// when the value is absent or unparsable.
func CoerceCost(value interface{}) float64 {
	var cost float64
	switch v := value.(type) {
	case float64:
		cost = v
	case float32:
		cost = float64(v)
	case int:
		cost = float64(v)
	case int64:
		cost = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		cost = parsed
	default:
		return 0
	}

	if cost < 0 {
		return 0
	}
	return cost
}

package fieldmap

import (
	"encoding/json"
	"fmt"
	"time"

	"example.com/mci/services/delivery/internal/model"
)

// deliveryColumns are the remote columns decoded into typed Delivery fields.
// Anything else in a document survives in the attributes blob.
var deliveryColumns = map[string]struct{}{
	"id": {}, "user_id": {}, "dr_number": {}, "customer_name": {},
	"vendor_number": {}, "origin": {}, "destination": {}, "truck_type": {},
	"truck_plate_number": {}, "distance": {}, "item_number": {},
	"item_description": {}, "serial_number": {}, "mobile_number": {},
	"status": {}, "additional_costs": {}, "delivery_date": {},
	"created_by": {}, "created_at": {}, "updated_at": {}, "completed_at": {},
}

var customerColumns = map[string]struct{}{
	"id": {}, "user_id": {}, "name": {}, "email": {}, "phone": {},
	"mobile_number": {}, "address": {}, "vendor_number": {},
	"contact_person": {}, "created_at": {}, "updated_at": {},
}

// DecodeDelivery converts a loosely-shaped delivery document into the typed
// remote record. The document may use any recognized spelling for its keys.
// Unrecognized keys are preserved in the attributes blob so nothing a client
// sent is lost.
func DecodeDelivery(doc Document) (*model.Delivery, error) {
	row := ToRemoteDelivery(doc)
	if row == nil {
		return nil, fmt.Errorf("empty delivery document")
	}

	d := &model.Delivery{
		UserID:           stringValue(row, "user_id"),
		DRNumber:         stringValue(row, "dr_number"),
		CustomerName:     stringValue(row, "customer_name"),
		VendorNumber:     stringValue(row, "vendor_number"),
		Origin:           stringValue(row, "origin"),
		Destination:      stringValue(row, "destination"),
		TruckType:        stringValue(row, "truck_type"),
		TruckPlateNumber: stringValue(row, "truck_plate_number"),
		Distance:         stringValue(row, "distance"),
		ItemNumber:       stringValue(row, "item_number"),
		ItemDescription:  stringValue(row, "item_description"),
		SerialNumber:     stringValue(row, "serial_number"),
		MobileNumber:     stringValue(row, "mobile_number"),
		Status:           model.StatusFromString(stringValue(row, "status")),
		AdditionalCosts:  CoerceCost(row["additional_costs"]),
		DeliveryDate:     stringValue(row, "delivery_date"),
		CreatedBy:        stringValue(row, "created_by"),
	}

	if id, ok := ParseID(row["id"]); ok {
		d.ID = id
	}
	if t, ok := timeValue(row, "created_at"); ok {
		d.CreatedAt = t
	}
	if t, ok := timeValue(row, "updated_at"); ok {
		d.UpdatedAt = t
	}
	if t, ok := timeValue(row, "completed_at"); ok {
		d.CompletedAt = &t
	}

	extras := make(Document)
	for key, value := range row {
		if _, known := deliveryColumns[key]; !known {
			extras[key] = value
		}
	}
	if len(extras) > 0 {
		blob, err := json.Marshal(extras)
		if err != nil {
			return nil, fmt.Errorf("failed to encode delivery attributes: %w", err)
		}
		d.Attributes = blob
	}

	return d, nil
}

// DeliveryDocument converts a typed delivery record into the canonical client
// document shape, restoring passthrough attributes.
func DeliveryDocument(d *model.Delivery) Document {
	if d == nil {
		return nil
	}

	doc := Document{}
	if len(d.Attributes) > 0 {
		var extras Document
		if err := json.Unmarshal(d.Attributes, &extras); err == nil {
			for key, value := range extras {
				doc[ToLocalDeliveryKey(key)] = value
			}
		}
	}

	doc["id"] = d.ID
	doc["drNumber"] = d.DRNumber
	doc["customerName"] = d.CustomerName
	doc["vendorNumber"] = d.VendorNumber
	doc["origin"] = d.Origin
	doc["destination"] = d.Destination
	doc["truckType"] = d.TruckType
	doc["truckPlateNumber"] = d.TruckPlateNumber
	doc["distance"] = d.Distance
	doc["itemNumber"] = d.ItemNumber
	doc["itemDescription"] = d.ItemDescription
	doc["serialNumber"] = d.SerialNumber
	doc["mobileNumber"] = d.MobileNumber
	doc["status"] = string(d.Status)
	doc["additionalCosts"] = d.AdditionalCosts
	doc["deliveryDate"] = d.DeliveryDate
	doc["createdBy"] = d.CreatedBy
	doc["userId"] = d.UserID

	if !d.CreatedAt.IsZero() {
		doc["createdAt"] = d.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !d.UpdatedAt.IsZero() {
		doc["lastModified"] = d.UpdatedAt.UTC().Format(time.RFC3339)
	}
	if d.CompletedAt != nil {
		completed := *d.CompletedAt
		doc["completedAt"] = completed.UTC().Format(time.RFC3339)
		if d.CompletedDate != "" {
			doc["completedDate"] = d.CompletedDate
		} else {
			doc["completedDate"] = completed.Format("01/02/2006")
		}
		if d.CompletedDateTime != "" {
			doc["completedDateTime"] = d.CompletedDateTime
		} else {
			doc["completedDateTime"] = completed.Format("01/02/2006, 3:04:05 PM")
		}
	}

	return doc
}

// DecodeCustomer converts a loosely-shaped customer document into the typed
// remote record.
func DecodeCustomer(doc Document) (*model.Customer, error) {
	row := ToRemoteCustomer(doc)
	if row == nil {
		return nil, fmt.Errorf("empty customer document")
	}

	c := &model.Customer{
		UserID:        stringValue(row, "user_id"),
		Name:          stringValue(row, "name"),
		Email:         stringValue(row, "email"),
		Phone:         stringValue(row, "phone"),
		MobileNumber:  stringValue(row, "mobile_number"),
		Address:       stringValue(row, "address"),
		VendorNumber:  stringValue(row, "vendor_number"),
		ContactPerson: stringValue(row, "contact_person"),
	}

	if id, ok := ParseID(row["id"]); ok {
		c.ID = id
	}

	extras := make(Document)
	for key, value := range row {
		if _, known := customerColumns[key]; !known {
			extras[key] = value
		}
	}
	if len(extras) > 0 {
		blob, err := json.Marshal(extras)
		if err != nil {
			return nil, fmt.Errorf("failed to encode customer attributes: %w", err)
		}
		c.Attributes = blob
	}

	return c, nil
}

// CustomerDocument converts a typed customer record into the client document
// shape.
func CustomerDocument(c *model.Customer) Document {
	if c == nil {
		return nil
	}

	doc := Document{}
	if len(c.Attributes) > 0 {
		var extras Document
		if err := json.Unmarshal(c.Attributes, &extras); err == nil {
			for key, value := range extras {
				doc[key] = value
			}
		}
	}

	doc["id"] = c.ID
	doc["name"] = c.Name
	doc["customerName"] = c.Name
	doc["email"] = c.Email
	doc["phone"] = c.Phone
	doc["mobileNumber"] = c.MobileNumber
	doc["address"] = c.Address
	doc["vendorNumber"] = c.VendorNumber
	doc["contactPerson"] = c.ContactPerson
	doc["userId"] = c.UserID

	return doc
}

// ToLocalDeliveryKey maps a single remote column name to the canonical client
// spelling, passing unknown names through.
func ToLocalDeliveryKey(key string) string {
	if local, ok := deliveryLocalNames[key]; ok {
		return local
	}
	return key
}

func stringValue(doc Document, key string) string {
	value, ok := doc[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func timeValue(doc Document, key string) (time.Time, bool) {
	value, ok := doc[key]
	if !ok || value == nil {
		return time.Time{}, false
	}
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// GenerateDRNumber generates a DR number for a booking submitted without one.
func GenerateDRNumber(now time.Time) string {
	ticks := fmt.Sprintf("%d", now.UnixMilli())
	if len(ticks) > 6 {
		ticks = ticks[len(ticks)-6:]
	}
	return fmt.Sprintf("DR%s-%s", now.Format("060102"), ticks)
}

package fieldmap

import (
	"fmt"
	"strconv"
)

// deliveryIDKeys are the identity-bearing keys a delivery document may carry,
// depending on which source produced it.
var deliveryIDKeys = []string{"id", "delivery_id", "deliveryId"}

// customerIDKeys are the identity-bearing keys of a customer document.
var customerIDKeys = []string{"id", "customer_id", "customerId"}

// FindDeliveryByID finds a delivery document whose identity matches id.
// Identifiers arrive as numbers from the remote store and as strings from the
// cache and the client, so comparison is loose: values match when equal as
// given or when their string forms are equal. Returns nil when no record
// matches.
func FindDeliveryByID(docs []Document, id interface{}) Document {
	idx := DeliveryIndexByID(docs, id)
	if idx < 0 {
		return nil
	}
	return docs[idx]
}

// DeliveryIndexByID returns the index of the matching delivery document, or
// -1 when no record matches.
func DeliveryIndexByID(docs []Document, id interface{}) int {
	return indexByID(docs, id, deliveryIDKeys)
}

// FindCustomerByID finds a customer document whose identity matches id, or
// nil when no record matches.
func FindCustomerByID(docs []Document, id interface{}) Document {
	idx := indexByID(docs, id, customerIDKeys)
	if idx < 0 {
		return nil
	}
	return docs[idx]
}

func indexByID(docs []Document, id interface{}, keys []string) int {
	if len(docs) == 0 || id == nil {
		return -1
	}

	for i, doc := range docs {
		for _, key := range keys {
			value, ok := doc[key]
			if !ok || value == nil {
				continue
			}
			if looseEqual(value, id) {
				return i
			}
		}
	}
	return -1
}

// looseEqual compares two identifier values as given and as strings.
func looseEqual(a, b interface{}) bool {
	if a == b {
		return true
	}
	return idString(a) == idString(b)
}

// idString renders an identifier in a canonical string form. JSON numbers
// decode as float64, so integral floats are printed without an exponent or
// trailing fraction.
func idString(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return idString(float64(value))
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case uint:
		return strconv.FormatUint(uint64(value), 10)
	case uint64:
		return strconv.FormatUint(value, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseID coerces a loosely-typed identifier to the remote store's numeric id.
// Returns false when the value cannot represent a positive integer.
func ParseID(v interface{}) (uint, bool) {
	switch value := v.(type) {
	case uint:
		return value, value != 0
	case int:
		if value <= 0 {
			return 0, false
		}
		return uint(value), true
	case int64:
		if value <= 0 {
			return 0, false
		}
		return uint(value), true
	case float64:
		if value <= 0 || value != float64(int64(value)) {
			return 0, false
		}
		return uint(value), true
	case string:
		parsed, err := strconv.ParseUint(value, 10, 64)
		if err != nil || parsed == 0 {
			return 0, false
		}
		return uint(parsed), true
	default:
		return 0, false
	}
}

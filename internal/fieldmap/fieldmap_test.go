package fieldmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Aliased client spellings all land on the same remote column
func TestToRemoteDeliveryAliases(t *testing.T) {
	doc := Document{
		"DR":         "DR5007",
		"Customer":   "Acme Ltd",
		"truckPlate": "KDA 123X",
		"Vendor":     "V-99",
	}

	row := ToRemoteDelivery(doc)

	require.Equal(t, "DR5007", row["dr_number"])
	require.Equal(t, "Acme Ltd", row["customer_name"])
	require.Equal(t, "KDA 123X", row["truck_plate_number"])
	require.Equal(t, "V-99", row["vendor_number"])
}

// Unknown keys pass through both directions without renaming
func TestFieldMappingPreservesUnknownKeys(t *testing.T) {
	doc := Document{
		"drNumber":    "DR1",
		"customField": "hello",
	}

	row := ToRemoteDelivery(doc)
	require.Equal(t, "hello", row["customField"])

	back := ToLocalDelivery(row)
	require.Equal(t, "hello", back["customField"])
	require.Equal(t, "DR1", back["drNumber"])
}

// Recognized field values survive a local→remote→local round-trip
func TestFieldMappingRoundTrip(t *testing.T) {
	doc := Document{
		"drNumber":     "DR42",
		"customerName": "Transit Co",
		"origin":       "Nairobi",
		"destination":  "Mombasa",
		"status":       "In Transit",
		"distance":     "485 km",
	}

	back := ToLocalDelivery(ToRemoteDelivery(doc))
	require.Equal(t, doc, back)
}

func TestCoerceCost(t *testing.T) {
	require.Equal(t, float64(120), CoerceCost(120))
	require.Equal(t, 99.5, CoerceCost("99.5"))
	require.Equal(t, 45.0, CoerceCost(" 45 "))
	require.Equal(t, 0.0, CoerceCost("not a number"))
	require.Equal(t, 0.0, CoerceCost(nil))
	require.Equal(t, 0.0, CoerceCost(-10.0))
	require.Equal(t, 0.0, CoerceCost([]string{"x"}))
}

func TestNormalizeDate(t *testing.T) {
	// Already RFC3339 stays stable
	require.Equal(t, "2024-03-05T10:30:00Z", NormalizeDate("2024-03-05T10:30:00Z"))

	// Common upload formats converge on RFC3339 UTC
	require.Equal(t, "2024-03-05T00:00:00Z", NormalizeDate("2024-03-05"))
	require.Equal(t, "2024-03-05T00:00:00Z", NormalizeDate("03/05/2024"))
	require.Equal(t, "2024-03-05T10:30:00Z", NormalizeDate("2024-03-05 10:30:00"))

	// time.Time values are formatted directly
	ts := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	require.Equal(t, "2024-03-05T10:30:00Z", NormalizeDate(ts))

	// Unparsable strings pass through unchanged
	require.Equal(t, "next tuesday", NormalizeDate("next tuesday"))
	require.Nil(t, NormalizeDate(nil))
}

// Cost fields are coerced during mapping, dates normalized
func TestToRemoteDeliveryCoercion(t *testing.T) {
	doc := Document{
		"additionalCosts": "150.75",
		"deliveryDate":    "03/05/2024",
	}

	row := ToRemoteDelivery(doc)

	require.Equal(t, 150.75, row["additional_costs"])
	require.Equal(t, "2024-03-05T00:00:00Z", row["delivery_date"])
}

func TestToRemoteCustomerAliases(t *testing.T) {
	doc := Document{
		"customerName":  "Acme Ltd",
		"mobile":        "0700000000",
		"contactPerson": "J. Otieno",
	}

	row := ToRemoteCustomer(doc)

	require.Equal(t, "Acme Ltd", row["name"])
	require.Equal(t, "0700000000", row["mobile_number"])
	require.Equal(t, "J. Otieno", row["contact_person"])
}

package fieldmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Numeric stored IDs match string lookups and vice versa
func TestFindDeliveryByIDTypeTolerant(t *testing.T) {
	docs := []Document{
		{"id": float64(5), "drNumber": "DR5"},
		{"deliveryId": "7", "drNumber": "DR7"},
	}

	// String query against a numeric ID
	found := FindDeliveryByID(docs, "5")
	require.NotNil(t, found)
	require.Equal(t, "DR5", found["drNumber"])

	// Numeric query against a string ID, on the alternate key
	found = FindDeliveryByID(docs, 7)
	require.NotNil(t, found)
	require.Equal(t, "DR7", found["drNumber"])
}

func TestFindDeliveryByIDMisses(t *testing.T) {
	docs := []Document{
		{"id": 1},
	}

	require.Nil(t, FindDeliveryByID(docs, 2))
	require.Nil(t, FindDeliveryByID(docs, nil))
	require.Nil(t, FindDeliveryByID(nil, 1))
	require.Equal(t, -1, DeliveryIndexByID(docs, "99"))
}

func TestFindCustomerByID(t *testing.T) {
	docs := []Document{
		{"customer_id": float64(12), "name": "Acme"},
	}

	found := FindCustomerByID(docs, "12")
	require.NotNil(t, found)
	require.Equal(t, "Acme", found["name"])
}

func TestParseID(t *testing.T) {
	id, ok := ParseID("42")
	require.True(t, ok)
	require.Equal(t, uint(42), id)

	id, ok = ParseID(float64(7))
	require.True(t, ok)
	require.Equal(t, uint(7), id)

	_, ok = ParseID("abc")
	require.False(t, ok)

	_, ok = ParseID(-1)
	require.False(t, ok)

	_, ok = ParseID(7.5)
	require.False(t, ok)

	_, ok = ParseID(nil)
	require.False(t, ok)
}

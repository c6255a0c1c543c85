package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Every record lands in exactly one bucket
func TestPartitionTotality(t *testing.T) {
	deliveries := []*Delivery{
		{DRNumber: "DR1", Status: StatusOnSchedule},
		{DRNumber: "DR2", Status: StatusInTransit},
		{DRNumber: "DR3", Status: StatusCompleted},
		{DRNumber: "DR4", Status: StatusSigned},
		{DRNumber: "DR5", Status: StatusDelivered},
		{DRNumber: "DR6", Status: StatusCancelled},
		{DRNumber: "DR7", Status: ""},
	}

	active, history := Partition(deliveries)

	require.Len(t, active, 4)
	require.Len(t, history, 3)

	seen := make(map[string]bool)
	for _, d := range append(active, history...) {
		require.False(t, seen[d.DRNumber], "record partitioned twice: %s", d.DRNumber)
		seen[d.DRNumber] = true
	}
	require.Len(t, seen, len(deliveries))
}

// Cancelled stays on the dashboard; only completion statuses archive
func TestPartitionCancelledStaysActive(t *testing.T) {
	active, history := Partition([]*Delivery{
		{DRNumber: "DR1", Status: StatusCancelled},
	})

	require.Len(t, active, 1)
	require.Empty(t, history)
}

// Partitioning already-partitioned output changes nothing
func TestPartitionIdempotent(t *testing.T) {
	deliveries := []*Delivery{
		{DRNumber: "DR1", Status: StatusActive},
		{DRNumber: "DR2", Status: StatusCompleted},
	}

	active, history := Partition(deliveries)
	active2, history2 := Partition(active)
	history3, history4 := Partition(history)

	require.Equal(t, active, active2)
	require.Empty(t, history2)
	require.Empty(t, history3)
	require.Equal(t, history, history4)
}

func TestApplyStatusCompletionStampsTimestamps(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 30, 15, 0, time.UTC)
	d := Delivery{DRNumber: "DR1", Status: StatusInTransit}

	updated, err := ApplyStatus(d, StatusCompleted, now)
	require.NoError(t, err)

	require.Equal(t, StatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	require.Equal(t, now, *updated.CompletedAt)
	require.Equal(t, "03/05/2024", updated.CompletedDate)
	require.Equal(t, "03/05/2024, 2:30:15 PM", updated.CompletedDateTime)
	require.Equal(t, now, updated.UpdatedAt)

	// Input record is untouched
	require.Equal(t, StatusInTransit, d.Status)
	require.Nil(t, d.CompletedAt)
}

func TestApplyStatusNonTerminalLeavesCompletion(t *testing.T) {
	now := time.Now()
	d := Delivery{DRNumber: "DR1", Status: StatusOnSchedule}

	updated, err := ApplyStatus(d, StatusOutForDelivery, now)
	require.NoError(t, err)

	require.Equal(t, StatusOutForDelivery, updated.Status)
	require.Nil(t, updated.CompletedAt)
	require.Equal(t, now, updated.UpdatedAt)
}

func TestApplyStatusRejectsUnrecognized(t *testing.T) {
	_, err := ApplyStatus(Delivery{}, DeliveryStatus("Lost In Space"), time.Now())
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatusFromStringDefaults(t *testing.T) {
	require.Equal(t, StatusOnSchedule, StatusFromString(""))
	require.Equal(t, StatusOnSchedule, StatusFromString("nonsense"))
	require.Equal(t, StatusCompleted, StatusFromString("Completed"))
}

func TestTerminalStatuses(t *testing.T) {
	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusSigned.Terminal())
	require.True(t, StatusDelivered.Terminal())
	require.False(t, StatusCancelled.Terminal())
	require.False(t, StatusPending.Terminal())
	require.False(t, StatusOnSchedule.Terminal())
}

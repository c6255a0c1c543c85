package model

import (
	"errors"
	"time"
)

// ErrInvalidStatus is returned when a status change targets a status outside
// the recognized vocabulary.
var ErrInvalidStatus = errors.New("invalid delivery status")

// Partition splits deliveries into the active and history buckets. Bucket
// membership is re-derived from the status field on every call; a stale flag
// stored on the record is never trusted. Every input record lands in exactly
// one bucket.
func Partition(deliveries []*Delivery) (active, history []*Delivery) {
	active = make([]*Delivery, 0, len(deliveries))
	history = make([]*Delivery, 0)

	for _, d := range deliveries {
		if StatusFromString(string(d.Status)).Terminal() {
			history = append(history, d)
		} else {
			active = append(active, d)
		}
	}
	return active, history
}

// ApplyStatus returns a copy of d with the status change applied. Any
// recognized status may follow any other; only unrecognized statuses are
// rejected. Completion statuses stamp the completion instant in the three
// representations the dashboard displays. The caller is responsible for
// moving the record between buckets afterwards.
func ApplyStatus(d Delivery, status DeliveryStatus, now time.Time) (Delivery, error) {
	if !status.Recognized() {
		return Delivery{}, ErrInvalidStatus
	}

	d.Status = status
	d.UpdatedAt = now

	if status.Terminal() {
		completed := now
		d.CompletedAt = &completed
		d.CompletedDate = now.Format("01/02/2006")
		d.CompletedDateTime = now.Format("01/02/2006, 3:04:05 PM")
	}

	return d, nil
}

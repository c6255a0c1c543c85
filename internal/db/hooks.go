package db

import (
	"time"

	"gorm.io/gorm"

	"example.com/mci/services/delivery/internal/metrics"
)

const startTimeKey = "metrics:start_time"

// InstrumentQueries wires before/after callbacks onto every write and read
// path so the metrics collector sees per-operation latency and outcome.
func InstrumentQueries(db *gorm.DB) {
	db.Callback().Create().Before("gorm:create").Register("metrics:insert:start", markStart)
	db.Callback().Create().After("gorm:create").Register("metrics:insert:done", record(metrics.DBQueryTypeInsert))

	db.Callback().Query().Before("gorm:query").Register("metrics:select:start", markStart)
	db.Callback().Query().After("gorm:query").Register("metrics:select:done", record(metrics.DBQueryTypeSelect))

	db.Callback().Update().Before("gorm:update").Register("metrics:update:start", markStart)
	db.Callback().Update().After("gorm:update").Register("metrics:update:done", record(metrics.DBQueryTypeUpdate))

	db.Callback().Delete().Before("gorm:delete").Register("metrics:delete:start", markStart)
	db.Callback().Delete().After("gorm:delete").Register("metrics:delete:done", record(metrics.DBQueryTypeDelete))
}

func record(queryType string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		metrics.GetMetricsCollector().RecordDatabaseQuery(queryType, tx.Error == nil, elapsed(tx))
	}
}

func markStart(tx *gorm.DB) {
	tx.InstanceSet(startTimeKey, time.Now())
}

func elapsed(tx *gorm.DB) time.Duration {
	if start, ok := tx.InstanceGet(startTimeKey); ok {
		return time.Since(start.(time.Time))
	}
	return 0
}

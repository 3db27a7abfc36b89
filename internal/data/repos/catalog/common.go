package catalog

import "gorm.io/gorm"

const bulkBatchSize = 200

// page applies skip/limit; a non-positive limit means no limit.
func page(q *gorm.DB, skip, limit int) *gorm.DB {
	if skip > 0 {
		q = q.Offset(skip)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

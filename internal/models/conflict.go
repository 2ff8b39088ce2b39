package models

import "time"

// ConflictType вид расхождения между локальным и облачным состоянием
type ConflictType string

const (
	ConflictTypeUpdate ConflictType = "update_conflict"
	ConflictTypeDelete ConflictType = "delete_conflict"
	ConflictTypeMerge  ConflictType = "merge_conflict"
)

// Resolution способ разрешения конфликта
type Resolution string

const (
	ResolutionPending     Resolution = "pending"
	ResolutionLocalWins   Resolution = "local_wins"
	ResolutionCloudWins   Resolution = "cloud_wins"
	ResolutionManualMerge Resolution = "manual_merge"
)

// Valid reports whether r is a resolution an operator may choose
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionLocalWins, ResolutionCloudWins, ResolutionManualMerge:
		return true
	}
	return false
}

// DataConflict представляет обнаруженное расхождение между терминалом и облаком.
// Создается только sync engine, изменяется только действием разрешения.
type DataConflict struct {
	CreatedAt    time.Time    `json:"created_at"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
	LocalData    Record       `json:"local_data"`
	CloudData    Record       `json:"cloud_data,omitempty"` // CloudData nil пока не получено из облака
	ID           string       `json:"id"`
	TableName    string       `json:"table_name"`
	RecordID     string       `json:"record_id"`
	QueueItemID  string       `json:"queue_item_id,omitempty"`
	ConflictType ConflictType `json:"conflict_type"`
	Resolution   Resolution   `json:"resolution"`
	ResolvedBy   string       `json:"resolved_by,omitempty"`
}

// IsResolved reports whether an operator already acted on the conflict
func (c *DataConflict) IsResolved() bool {
	return c.Resolution != ResolutionPending && c.Resolution != ""
}

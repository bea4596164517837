package model

import (
	"database/sql"
	"time"
)

// Operation is a persisted record of a catalog-mutating CLI command. Its ID
// doubles as the version of the catalog snapshot uploaded afterwards.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "running", "success" or "error"
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Owner represents a submitting user or team. Jobs and API keys belong to an
// owner; the admission budget is accounted per owner.
type Owner struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

package roles

import "time"

// StatusActive is the default status of new roles.
const StatusActive = "active"

// Role groups permissions and is granted to users.
type Role struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	LastEditedBy string     `json:"lastEditedBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// Deleted reports whether the role is soft deleted.
func (r Role) Deleted() bool {
	return r.DeletedAt != nil
}

// CreateInput carries the fields of a new role.
type CreateInput struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"required"`
	Status      string `json:"status" validate:"required,max=20"`
}

// UpdateInput replaces the editable fields of a role.
type UpdateInput struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"required"`
	Status      string `json:"status" validate:"required,max=20"`
}

// sortColumns are the columns a listing may be ordered by.
var sortColumns = []string{"name", "status", "created_at", "updated_at"}

package permissions

import "time"

// StatusActive is the default status of new permissions.
const StatusActive = "active"

// Permission is a named capability granted to roles.
type Permission struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	LastEditedBy string     `json:"lastEditedBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// Deleted reports whether the permission is soft deleted.
func (p Permission) Deleted() bool {
	return p.DeletedAt != nil
}

// CreateInput carries the fields of a new permission.
type CreateInput struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"required"`
	Status      string `json:"status" validate:"omitempty,max=20"`
}

// UpdateInput replaces the editable fields of a permission.
type UpdateInput struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"required"`
	Status      string `json:"status" validate:"required,max=20"`
}

var sortColumns = []string{"name", "status", "created_at", "updated_at"}

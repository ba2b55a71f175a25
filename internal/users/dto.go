package users

// SetRoleDTO assigns or clears a user's role.
type SetRoleDTO struct {
	RoleID *int64 `json:"role_id"`
}

// SetActiveDTO toggles an account.
type SetActiveDTO struct {
	IsActive bool `json:"is_active"`
}

// SetOverrideDTO records a per-user capability exception.
type SetOverrideDTO struct {
	CapabilityKey string `json:"capability_key" validate:"required,max=128"`
	CanView       bool   `json:"can_view"`
}

package roles

// CreateRoleDTO creates a role.
type CreateRoleDTO struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=255"`
}

// UpdateRoleDTO renames or redescribes a role.
type UpdateRoleDTO struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=255"`
}

// SetGrantsDTO replaces the role's granted capability set.
type SetGrantsDTO struct {
	CapabilityKeys []string `json:"capability_keys" validate:"dive,required,max=128"`
}

// SetActionPermissionDTO writes one explicit action row for the role.
type SetActionPermissionDTO struct {
	ActionKey  string `json:"action_key" validate:"required,max=128"`
	CanExecute bool   `json:"can_execute"`
}

package models

// LoginRequest is the payload for password authentication
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginResponse carries the issued access token
type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	User      *User  `json:"user"`
}

// CreateUserRequest is the admin payload for provisioning a user
type CreateUserRequest struct {
	Email    string   `json:"email" binding:"required,email"`
	Name     string   `json:"name" binding:"required,min=1,max=100"`
	Password string   `json:"password" binding:"required,min=8"`
	Roles    []string `json:"roles" binding:"omitempty,dive,oneof=reader editor reviewer trainer qualitymanager admin"`
}

// GrantRoleRequest adds a role to an existing user
type GrantRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=reader editor reviewer trainer qualitymanager admin"`
}

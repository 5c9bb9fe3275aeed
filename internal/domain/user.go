package domain

import "time"

const RoleAdmin = "admin"

type AdminLoginDTO struct {
	Secret string `json:"secret" binding:"required"`
}

type AuthResponseDTO struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

package models

// User represents the diner profile issued by the backend on first login
type User struct {
	ClienteID string `json:"cliente_id"`
	Nombre    string `json:"nombre"`
	Email     string `json:"email,omitempty"`
	Telefono  string `json:"telefono,omitempty"`
	Rol       string `json:"rol"` // always "cliente" in this client
}

// LoginRequest is the request body for POST cliente/crear
type LoginRequest struct {
	Nombre          string `json:"nombre" validate:"required,min=2"`
	Email           string `json:"email" validate:"omitempty,email"`
	Telefono        string `json:"telefono" validate:"omitempty,min=6"`
	DuracionMinutos int    `json:"duracion_minutos" validate:"gt=0"`
}

// LoginResponse is the payload returned by POST cliente/crear
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

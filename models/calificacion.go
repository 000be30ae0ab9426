package models

import "time"

// Calificacion is a diner rating attached to a delivered order
type Calificacion struct {
	CalificacionID string    `json:"calificacion_id,omitempty"`
	PedidoID       string    `json:"pedido_id" validate:"required"`
	Puntuacion     int       `json:"puntuacion" validate:"min=1,max=5"`
	Resena         string    `json:"resena,omitempty"`
	NombreCliente  string    `json:"nombre_cliente"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// EstadoPedido is the order lifecycle state as shown to the diner
type EstadoPedido string

const (
	EstadoPendiente     EstadoPedido = "Pendiente"
	EstadoEnPreparacion EstadoPedido = "En preparacion"
	EstadoListo         EstadoPedido = "Listo"
	EstadoEntregado     EstadoPedido = "Entregado"
)

// ParseEstado maps the backend's status vocabulary onto EstadoPedido.
// Matching tolerates case, underscores and the accented "preparación"
// variant the backend has used across versions. Anything else is an error:
// an unknown state must never be displayed as Pendiente.
func ParseEstado(raw string) (EstadoPedido, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", " ")
	normalized = strings.ReplaceAll(normalized, "ó", "o")

	switch normalized {
	case "pendiente":
		return EstadoPendiente, nil
	case "en preparacion":
		return EstadoEnPreparacion, nil
	case "listo":
		return EstadoListo, nil
	case "entregado":
		return EstadoEntregado, nil
	}
	return "", fmt.Errorf("estado de pedido desconocido: %q", raw)
}

// Pendiente reports whether the order is still in the kitchen's hands.
func (e EstadoPedido) Pendiente() bool {
	return e == EstadoPendiente || e == EstadoEnPreparacion
}

// ProductoPedido is one line item inside a create-order request
type ProductoPedido struct {
	ProductoID     string  `json:"producto_id"`
	Cantidad       int     `json:"cantidad"`
	PrecioUnitario float64 `json:"precio_unitario"`
}

// CreatePedidoDTO is the request body for POST pedido/crear
type CreatePedidoDTO struct {
	ClienteID     string           `json:"cliente_id"`
	ClienteNombre string           `json:"cliente_nombre"`
	MesaID        string           `json:"mesa_id"`
	Productos     []ProductoPedido `json:"productos"`
	Nota          string           `json:"nota"`
	PedidoPadreID string           `json:"pedido_padre_id,omitempty"`
}

// Pedido is the order entity as returned by POST pedido/crear
type Pedido struct {
	PedidoID      string    `json:"pedido_id"`
	NumeroPedido  int       `json:"numero_pedido"`
	ClienteID     string    `json:"cliente_id"`
	NombreCliente string    `json:"nombre_cliente"`
	MesaID        string    `json:"mesa_id"`
	Nota          string    `json:"nota"`
	PrecioTotal   float64   `json:"precio_total"`
	Estado        string    `json:"estado"`
	CreatedAt     time.Time `json:"created_at"`
	PedidoPadreID string    `json:"pedido_padre_id,omitempty"`
}

// PedidoResponse is the payload returned by POST pedido/crear
type PedidoResponse struct {
	Pedido    Pedido           `json:"pedido"`
	Productos []ProductoPedido `json:"productos"`
}

// CreatePagoDTO is the request body for POST pago/crear
type CreatePagoDTO struct {
	PedidoID  string `json:"pedido_id" validate:"required"`
	MedioPago string `json:"medio_pago" validate:"required,oneof=efectivo app tarjeta"`
}

// PagoResponse is the payload returned by POST pago/crear
type PagoResponse struct {
	PagoID      string    `json:"pago_id"`
	PedidoID    string    `json:"pedido_id"`
	MedioDePago string    `json:"medio_de_pago"`
	Monto       float64   `json:"monto"`
	IVA         float64   `json:"IVA"`
	MontoFinal  float64   `json:"monto_final"`
	CreatedAt   time.Time `json:"created_at"`
}

// PedidoData is an order merged with its completed payment, cached locally
// for the duration of the sitting. It only exists once both the order and
// the payment calls succeeded.
type PedidoData struct {
	PedidoID      string           `json:"pedido_id"`
	NumeroPedido  int              `json:"numero_pedido"`
	ClienteID     string           `json:"cliente_id"`
	NombreCliente string           `json:"nombre_cliente"`
	MesaID        string           `json:"mesa_id"`
	Nota          string           `json:"nota"`
	PrecioTotal   float64          `json:"precio_total"`
	Estado        EstadoPedido     `json:"estado"`
	Productos     []ProductoPedido `json:"productos"`
	PedidoPadreID string           `json:"pedido_padre_id,omitempty"`

	PagoID      string    `json:"pago_id"`
	MedioDePago string    `json:"medio_de_pago"`
	Monto       float64   `json:"monto"`
	IVA         float64   `json:"IVA"`
	MontoFinal  float64   `json:"monto_final"`
	PagadoAt    time.Time `json:"pagado_at"`

	Calificacion *Calificacion `json:"calificacion,omitempty"`
}

// EstadoCambio is the pedido:estado-actualizado push payload
type EstadoCambio struct {
	PedidoID     string `json:"pedido_id"`
	NumeroPedido int    `json:"numero_pedido"`
	MesaID       string `json:"mesa_id"`
	Estado       string `json:"estado"`
}

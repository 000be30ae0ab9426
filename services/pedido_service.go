package services

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/restofacil/mesa-client/models"
	"github.com/restofacil/mesa-client/signals"
	"github.com/restofacil/mesa-client/store"
	"github.com/restofacil/mesa-client/utils"
)

// PedidoService is the local cache of orders placed during the current
// sitting and the owner of the two-phase checkout workflow.
type PedidoService struct {
	api    BackendAPI
	store  *store.Store
	toasts *ToastService
	log    zerolog.Logger

	// Pedidos is the ordered list of completed orders for the sitting
	Pedidos *signals.Signal[[]models.PedidoData]

	// PedidoNuevo holds the most recently created order
	PedidoNuevo *signals.Signal[*models.Pedido]

	Loading *signals.Signal[bool]
	Error   *signals.Signal[string]
	Success *signals.Signal[string]

	LoadingPago *signals.Signal[bool]
	ErrorPago   *signals.Signal[string]
	SuccessPago *signals.Signal[string]
}

// NewPedidoService restores the persisted order list and installs the
// persistence hook.
func NewPedidoService(api BackendAPI, st *store.Store, toasts *ToastService, log zerolog.Logger) *PedidoService {
	var stored []models.PedidoData
	st.LoadJSON(store.KeyPedidosMesa, &stored)

	s := &PedidoService{
		api:    api,
		store:  st,
		toasts: toasts,
		log:    log.With().Str("component", "pedidos").Logger(),

		Pedidos:     signals.New(stored),
		PedidoNuevo: signals.New[*models.Pedido](nil),

		Loading: signals.New(false),
		Error:   signals.New(""),
		Success: signals.New(""),

		LoadingPago: signals.New(false),
		ErrorPago:   signals.New(""),
		SuccessPago: signals.New(""),
	}

	s.Pedidos.Subscribe(func(pedidos []models.PedidoData) {
		if len(pedidos) == 0 {
			if err := st.RemoveItem(store.KeyPedidosMesa); err != nil {
				s.log.Warn().Err(err).Msg("failed to remove stored orders")
			}
			return
		}
		if err := st.SaveJSON(store.KeyPedidosMesa, pedidos); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist orders")
		}
	})

	return s
}

// UltimoPedido returns the most recent order of the sitting, or nil
func (s *PedidoService) UltimoPedido() *models.PedidoData {
	pedidos := s.Pedidos.Get()
	if len(pedidos) == 0 {
		return nil
	}
	last := pedidos[len(pedidos)-1]
	return &last
}

// PedidoPadre returns the first order of the sitting, or nil. Follow-up
// orders reference it as their parent.
func (s *PedidoService) PedidoPadre() *models.PedidoData {
	pedidos := s.Pedidos.Get()
	if len(pedidos) == 0 {
		return nil
	}
	first := pedidos[0]
	return &first
}

// CantidadPedidos returns how many orders the sitting has
func (s *PedidoService) CantidadPedidos() int {
	return len(s.Pedidos.Get())
}

// PedidosPendientes counts orders still in {Pendiente, En preparacion}
func (s *PedidoService) PedidosPendientes() int {
	count := 0
	for _, p := range s.Pedidos.Get() {
		if p.Estado.Pendiente() {
			count++
		}
	}
	return count
}

// PedidosEntregados counts delivered orders
func (s *PedidoService) PedidosEntregados() int {
	count := 0
	for _, p := range s.Pedidos.Get() {
		if p.Estado == models.EstadoEntregado {
			count++
		}
	}
	return count
}

// TotalSesion sums the final amounts of every order in the sitting
func (s *PedidoService) TotalSesion() float64 {
	total := 0.0
	for _, p := range s.Pedidos.Get() {
		total += p.MontoFinal
	}
	return total
}

// CreatePedidoConPago places an order and then pays for it. Payment is
// strictly ordered after order creation: it needs the issued pedido_id.
// A record is appended to the sitting's history only when both calls
// succeed; any failure leaves the history untouched and surfaces one
// combined error.
func (s *PedidoService) CreatePedidoConPago(dto models.CreatePedidoDTO, medioPago string) (*models.PedidoData, error) {
	if err := utils.ValidateMedioPago(medioPago); err != nil {
		s.Error.Set(err.Error())
		return nil, err
	}

	s.Loading.Set(true)
	s.Error.Set("")
	defer s.Loading.Set(false)

	pedidoResp, err := s.api.CrearPedido(dto)
	if err != nil {
		s.log.Error().Err(err).Msg("order creation failed")
		s.Error.Set("Error al procesar pedido y pago")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	pedido := pedidoResp.Pedido
	s.PedidoNuevo.Set(&pedido)
	s.Success.Set("Pedido creado con éxito")

	pagoResp, err := s.crearPago(models.CreatePagoDTO{
		PedidoID:  pedido.PedidoID,
		MedioPago: medioPago,
	})
	if err != nil {
		// The order exists on the backend but was never paid. No record
		// is cached; the wrapped id lets a caller retry the payment.
		s.log.Error().Err(err).Str("pedido_id", pedido.PedidoID).Msg("payment failed after order creation")
		s.Error.Set("Error al procesar pedido y pago")
		return nil, fmt.Errorf("failed to pay order %s: %w", pedido.PedidoID, err)
	}

	estado, err := models.ParseEstado(pedido.Estado)
	if err != nil {
		s.log.Error().Err(err).Str("pedido_id", pedido.PedidoID).Msg("backend returned unknown order state")
		s.Error.Set("Error al procesar pedido y pago")
		return nil, err
	}

	record := models.PedidoData{
		PedidoID:      pedido.PedidoID,
		NumeroPedido:  pedido.NumeroPedido,
		ClienteID:     pedido.ClienteID,
		NombreCliente: pedido.NombreCliente,
		MesaID:        pedido.MesaID,
		Nota:          pedido.Nota,
		PrecioTotal:   pedido.PrecioTotal,
		Estado:        estado,
		Productos:     pedidoResp.Productos,
		PedidoPadreID: pedido.PedidoPadreID,

		PagoID:      pagoResp.PagoID,
		MedioDePago: pagoResp.MedioDePago,
		Monto:       pagoResp.Monto,
		IVA:         pagoResp.IVA,
		MontoFinal:  pagoResp.MontoFinal,
		PagadoAt:    pagoResp.CreatedAt,
	}

	s.Pedidos.Update(func(pedidos []models.PedidoData) []models.PedidoData {
		return append(pedidos, record)
	})
	s.log.Info().Str("pedido_id", record.PedidoID).Int("numero", record.NumeroPedido).
		Float64("monto_final", record.MontoFinal).Msg("order placed and paid")

	return &record, nil
}

func (s *PedidoService) crearPago(dto models.CreatePagoDTO) (*models.PagoResponse, error) {
	s.LoadingPago.Set(true)
	s.ErrorPago.Set("")
	defer s.LoadingPago.Set(false)

	resp, err := s.api.CrearPago(dto)
	if err != nil {
		s.ErrorPago.Set("Error al crear pago")
		return nil, err
	}

	s.SuccessPago.Set("Pago creado exitosamente")
	return resp, nil
}

// ActualizarEstadoPedido applies a pushed status change to the matching
// cached order. The replace is idempotent; events for orders the client
// does not know are ignored. One notification is raised per applied
// event.
func (s *PedidoService) ActualizarEstadoPedido(cambio models.EstadoCambio) {
	estado, err := models.ParseEstado(cambio.Estado)
	if err != nil {
		s.log.Error().Err(err).Str("pedido_id", cambio.PedidoID).Msg("ignoring status push with unknown state")
		s.toasts.Error("Estado de pedido desconocido", cambio.Estado)
		return
	}

	applied := false
	s.Pedidos.Update(func(pedidos []models.PedidoData) []models.PedidoData {
		updated := make([]models.PedidoData, len(pedidos))
		copy(updated, pedidos)
		for i := range updated {
			if updated[i].PedidoID == cambio.PedidoID {
				updated[i].Estado = estado
				applied = true
			}
		}
		return updated
	})

	if !applied {
		return
	}

	s.log.Info().Str("pedido_id", cambio.PedidoID).Str("estado", string(estado)).Msg("order status updated")
	s.toasts.Success(fmt.Sprintf("Pedido #%d", cambio.NumeroPedido), "Estado: "+string(estado))
}

// AttachCalificacion stores a submitted rating on its cached order
func (s *PedidoService) AttachCalificacion(pedidoID string, calificacion models.Calificacion) {
	s.Pedidos.Update(func(pedidos []models.PedidoData) []models.PedidoData {
		updated := make([]models.PedidoData, len(pedidos))
		copy(updated, pedidos)
		for i := range updated {
			if updated[i].PedidoID == pedidoID {
				c := calificacion
				updated[i].Calificacion = &c
			}
		}
		return updated
	})
}

// PedidosByCliente returns the orders placed by one diner
func (s *PedidoService) PedidosByCliente(clienteID string) []models.PedidoData {
	var result []models.PedidoData
	for _, p := range s.Pedidos.Get() {
		if p.ClienteID == clienteID {
			result = append(result, p)
		}
	}
	return result
}

// PedidosHijos returns the follow-up orders of the sitting
func (s *PedidoService) PedidosHijos() []models.PedidoData {
	var result []models.PedidoData
	for _, p := range s.Pedidos.Get() {
		if p.PedidoPadreID != "" {
			result = append(result, p)
		}
	}
	return result
}

// PedidoByID returns one cached order, or nil
func (s *PedidoService) PedidoByID(pedidoID string) *models.PedidoData {
	for _, p := range s.Pedidos.Get() {
		if p.PedidoID == pedidoID {
			found := p
			return &found
		}
	}
	return nil
}

// HayPedidosEnSesion reports whether the sitting has any orders
func (s *PedidoService) HayPedidosEnSesion() bool {
	return len(s.Pedidos.Get()) > 0
}

// LimpiarSesion drops the order list and every transient status signal.
// Called through the session-ended event when the sitting closes.
func (s *PedidoService) LimpiarSesion() {
	s.Pedidos.Set(nil)
	s.PedidoNuevo.Set(nil)
	s.Error.Set("")
	s.Success.Set("")
	s.ErrorPago.Set("")
	s.SuccessPago.Set("")
}

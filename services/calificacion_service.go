package services

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/restofacil/mesa-client/models"
	"github.com/restofacil/mesa-client/signals"
	"github.com/restofacil/mesa-client/utils"
)

// CalificacionService submits diner ratings for delivered orders
type CalificacionService struct {
	api     BackendAPI
	pedidos *PedidoService
	toasts  *ToastService
	log     zerolog.Logger

	Calificacion *signals.Signal[*models.Calificacion]
	Loading      *signals.Signal[bool]
	Error        *signals.Signal[string]
	Success      *signals.Signal[string]
}

// NewCalificacionService creates the rating service
func NewCalificacionService(api BackendAPI, pedidos *PedidoService, toasts *ToastService, log zerolog.Logger) *CalificacionService {
	return &CalificacionService{
		api:     api,
		pedidos: pedidos,
		toasts:  toasts,
		log:     log.With().Str("component", "calificaciones").Logger(),

		Calificacion: signals.New[*models.Calificacion](nil),
		Loading:      signals.New(false),
		Error:        signals.New(""),
		Success:      signals.New(""),
	}
}

// CrearCalificacion submits a rating and attaches it to the cached
// order. The rating view awaits this call directly.
func (s *CalificacionService) CrearCalificacion(calificacion models.Calificacion) (*models.Calificacion, error) {
	if err := utils.ValidateStruct(calificacion); err != nil {
		s.Error.Set(err.Error())
		return nil, err
	}

	s.Loading.Set(true)
	s.Error.Set("")
	s.Success.Set("")
	defer s.Loading.Set(false)

	created, err := s.api.CrearCalificacion(calificacion)
	if err != nil {
		s.log.Error().Err(err).Str("pedido_id", calificacion.PedidoID).Msg("rating submission failed")
		s.Error.Set("Error al enviar calificación")
		return nil, fmt.Errorf("failed to submit rating: %w", err)
	}

	s.Success.Set("Calificación enviada exitosamente")
	s.Calificacion.Set(created)
	s.pedidos.AttachCalificacion(created.PedidoID, *created)
	s.toasts.Success("¡Gracias por tu calificación!", "")

	return created, nil
}

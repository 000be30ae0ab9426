package services

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/restofacil/mesa-client/models"
	"github.com/restofacil/mesa-client/signals"
)

// ConnectionStatus is the realtime channel lifecycle state
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

const (
	maxReconnectAttempts = 5
	reconnectDelay       = time.Second
	reconnectDelayMax    = 5 * time.Second
	connectTimeout       = 10 * time.Second
)

// Frame is one message on the realtime channel
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SocketService owns the single realtime connection to the backend. It
// re-authenticates the channel on every (re)connect — the channel has no
// memory of identity across drops — and stages pushed order-status
// changes into a single holding slot for the composing root to drain.
type SocketService struct {
	auth   *AuthService
	toasts *ToastService
	url    string
	log    zerolog.Logger

	// Retry tuning, defaulted to the backend client's parameters
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	Status            *signals.Signal[ConnectionStatus]
	ReconnectAttempts *signals.Signal[int]
	ConnectionError   *signals.Signal[string]
	LastPingTime      *signals.Signal[time.Time]

	// UltimoCambioEstado holds at most one undelivered status event;
	// later events overwrite earlier undrained ones.
	UltimoCambioEstado *signals.Signal[*models.EstadoCambio]

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	running bool
}

// NewSocketService creates the manager and, like the web client, starts
// connecting right away when a session is already active.
func NewSocketService(auth *AuthService, toasts *ToastService, socketURL string, log zerolog.Logger) *SocketService {
	s := &SocketService{
		auth:   auth,
		toasts: toasts,
		url:    wsEndpoint(socketURL),
		log:    log.With().Str("component", "socket").Logger(),

		maxAttempts: maxReconnectAttempts,
		baseDelay:   reconnectDelay,
		maxDelay:    reconnectDelayMax,

		Status:            signals.New(StatusDisconnected),
		ReconnectAttempts: signals.New(0),
		ConnectionError:   signals.New(""),
		LastPingTime:      signals.New(time.Time{}),

		UltimoCambioEstado: signals.New[*models.EstadoCambio](nil),
	}

	if auth.IsAuthenticated() {
		s.Connect()
	}

	return s
}

// wsEndpoint turns the configured base URL into the channel endpoint
func wsEndpoint(base string) string {
	url := strings.TrimSuffix(base, "/") + "/ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

// IsConnected reports whether the channel is live
func (s *SocketService) IsConnected() bool {
	return s.Status.Get() == StatusConnected
}

// Connect opens the channel. Calling it while connected or already
// connecting is a no-op.
func (s *SocketService) Connect() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Debug().Msg("socket already connected")
		return
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.Status.Set(StatusConnecting)
	s.ConnectionError.Set("")

	go s.run(done)
}

// run dials, reads until the connection drops, and retries with a capped
// backoff until the attempt budget is spent or Disconnect is called.
func (s *SocketService) run(done chan struct{}) {
	attempts := 0
	for {
		dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
		conn, _, err := dialer.Dial(s.url, nil)
		if err != nil {
			attempts++
			s.ReconnectAttempts.Set(attempts)
			s.log.Warn().Err(err).Int("attempt", attempts).Msg("connection failed")

			if attempts >= s.maxAttempts {
				s.Status.Set(StatusError)
				s.ConnectionError.Set("No se pudo reconectar al servidor")
				s.stop()
				return
			}

			s.Status.Set(StatusError)
			if !s.sleep(done, s.backoff(attempts)) {
				return
			}
			s.Status.Set(StatusConnecting)
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		attempts = 0
		s.ReconnectAttempts.Set(0)
		s.ConnectionError.Set("")
		s.Status.Set(StatusConnected)
		s.log.Info().Str("url", s.url).Msg("socket connected")

		s.authenticate()

		clean := s.readLoop(conn, done)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()

		select {
		case <-done:
			// Explicit teardown
			s.Status.Set(StatusDisconnected)
			return
		default:
		}

		if clean {
			s.Status.Set(StatusDisconnected)
			s.stop()
			return
		}

		// Dropped mid-session: try again
		attempts++
		s.ReconnectAttempts.Set(attempts)
		s.Status.Set(StatusError)
		if attempts >= s.maxAttempts {
			s.ConnectionError.Set("No se pudo reconectar al servidor")
			s.stop()
			return
		}
		if !s.sleep(done, s.backoff(attempts)) {
			return
		}
		s.Status.Set(StatusConnecting)
	}
}

// backoff grows the retry delay up to the cap
func (s *SocketService) backoff(attempt int) time.Duration {
	delay := s.baseDelay << (attempt - 1)
	if delay > s.maxDelay {
		return s.maxDelay
	}
	return delay
}

// sleep waits for the delay unless teardown wins; false means stop
func (s *SocketService) sleep(done chan struct{}, delay time.Duration) bool {
	select {
	case <-done:
		s.Status.Set(StatusDisconnected)
		return false
	case <-time.After(delay):
		return true
	}
}

func (s *SocketService) stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// readLoop processes incoming frames until the connection drops. It
// returns true for a clean close.
func (s *SocketService) readLoop(conn *websocket.Conn, done chan struct{}) bool {
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info().Msg("socket closed by server")
				return true
			}
			select {
			case <-done:
				return true
			default:
			}
			s.log.Warn().Err(err).Msg("socket read failed")
			return false
		}

		s.handleFrame(frame)
	}
}

func (s *SocketService) handleFrame(frame Frame) {
	switch frame.Event {
	case "pedido:estado-actualizado":
		var cambio models.EstadoCambio
		if err := json.Unmarshal(frame.Data, &cambio); err != nil {
			s.log.Warn().Err(err).Msg("malformed status push")
			return
		}
		s.log.Info().Str("pedido_id", cambio.PedidoID).Str("estado", cambio.Estado).Msg("status push received")
		s.UltimoCambioEstado.Set(&cambio)

	case "pong":
		s.LastPingTime.Set(time.Now())

	case "mozo:llamada-confirmada":
		s.toasts.Info("Mozo en camino", "Tu llamada fue confirmada")

	case "authenticated":
		s.log.Debug().Msg("channel authenticated")

	default:
		s.log.Debug().Str("event", frame.Event).Msg("unhandled socket event")
	}
}

// authenticate identifies this client on the freshly opened channel
func (s *SocketService) authenticate() {
	if !s.auth.IsAuthenticated() {
		return
	}

	user := s.auth.User.Get()
	mesa := s.auth.Mesa.Get()

	payload := map[string]any{
		"userId":   user.ClienteID,
		"userName": user.Nombre,
		"userRole": "cliente",
		"token":    s.auth.TokenValue(),
	}
	if mesa != nil {
		payload["mesaId"] = mesa.MesaID
		payload["mesaNumero"] = mesa.Numero
	}

	s.Emit("authenticate", payload)
}

// Emit sends one frame. Pushes are not queued: when the channel is down
// the frame is dropped with a warning.
func (s *SocketService) Emit(event string, data any) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		s.log.Warn().Str("event", event).Msg("socket not connected, dropping emit")
		return
	}

	frame := Frame{Event: event}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			s.log.Warn().Err(err).Str("event", event).Msg("failed to encode emit")
			return
		}
		frame.Data = payload
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("failed to emit")
	}
}

// SendPing measures channel liveness; the server answers with pong
func (s *SocketService) SendPing() {
	s.Emit("ping", nil)
}

// LlamarMozo asks a waiter to come to the table
func (s *SocketService) LlamarMozo() {
	mesa := s.auth.Mesa.Get()
	if mesa == nil {
		s.toasts.Warning("Sin mesa", "Validá una mesa antes de llamar al mozo")
		return
	}
	s.Emit("mozo:llamada", map[string]any{
		"mesaId":     mesa.MesaID,
		"mesaNumero": mesa.Numero,
	})
}

// Disconnect tears the channel down. Safe to call when already
// disconnected.
func (s *SocketService) Disconnect() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		s.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		conn.Close()
	}
	s.Status.Set(StatusDisconnected)
	s.log.Info().Msg("socket disconnected")
}

// DrainEstadoCambios wires the holding slot into the order container:
// each staged event is applied and the slot cleared. Installed by the
// composing root so transport stays decoupled from business state. The
// returned function removes the observer.
func DrainEstadoCambios(socket *SocketService, pedidos *PedidoService) func() {
	return socket.UltimoCambioEstado.Subscribe(func(cambio *models.EstadoCambio) {
		if cambio == nil {
			return
		}
		pedidos.ActualizarEstadoPedido(*cambio)
		socket.UltimoCambioEstado.Set(nil)
	})
}

package services

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/restofacil/mesa-client/models"
	"github.com/restofacil/mesa-client/signals"
	"github.com/restofacil/mesa-client/store"
	"github.com/restofacil/mesa-client/utils"
)

// AuthService is the single source of truth for who is using the client
// and at which table. The two axes (personal login, table validation) are
// independent: a session is fully usable only when both hold.
type AuthService struct {
	api             BackendAPI
	store           *store.Store
	toasts          *ToastService
	log             zerolog.Logger
	duracionMinutos int
	now             func() time.Time

	User        *signals.Signal[*models.User]
	Token       *signals.Signal[string]
	Mesa        *signals.Signal[*models.Mesa]
	MesaSession *signals.Signal[*models.MesaSession]

	// User axis status
	Loading *signals.Signal[bool]
	Error   *signals.Signal[string]
	Success *signals.Signal[string]

	// Table axis status
	MesaLoading *signals.Signal[bool]
	MesaError   *signals.Signal[string]
	MesaSuccess *signals.Signal[string]

	mu           sync.Mutex
	sessionEnded map[int]func()
	nextSub      int
}

// NewAuthService restores any persisted session from the store and
// installs the persistence hooks that keep it in sync.
func NewAuthService(api BackendAPI, st *store.Store, toasts *ToastService, log zerolog.Logger, duracionMinutos int) *AuthService {
	s := &AuthService{
		api:             api,
		store:           st,
		toasts:          toasts,
		log:             log.With().Str("component", "auth").Logger(),
		duracionMinutos: duracionMinutos,
		now:             time.Now,

		User:        signals.New(loadStoredUser(st)),
		Token:       signals.New(st.LoadString(store.KeyToken)),
		Mesa:        signals.New(loadStoredMesa(st)),
		MesaSession: signals.New(loadStoredSession(st)),

		Loading: signals.New(false),
		Error:   signals.New(""),
		Success: signals.New(""),

		MesaLoading: signals.New(false),
		MesaError:   signals.New(""),
		MesaSuccess: signals.New(""),

		sessionEnded: make(map[int]func()),
	}

	s.installPersistence()
	return s
}

func loadStoredUser(st *store.Store) *models.User {
	var user models.User
	if st.LoadJSON(store.KeyUser, &user) {
		return &user
	}
	return nil
}

func loadStoredMesa(st *store.Store) *models.Mesa {
	var mesa models.Mesa
	if st.LoadJSON(store.KeyMesa, &mesa) {
		return &mesa
	}
	return nil
}

func loadStoredSession(st *store.Store) *models.MesaSession {
	var session models.MesaSession
	if st.LoadJSON(store.KeyMesaSession, &session) {
		return &session
	}
	return nil
}

// installPersistence re-serializes each slice of session state whenever
// it changes. A field that becomes absent removes its storage key.
func (s *AuthService) installPersistence() {
	s.User.Subscribe(func(user *models.User) {
		s.persist(store.KeyUser, user == nil, user)
	})
	s.Token.Subscribe(func(token string) {
		if token == "" {
			s.removeKey(store.KeyToken)
			return
		}
		if err := s.store.SetItem(store.KeyToken, token); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist token")
		}
	})
	s.Mesa.Subscribe(func(mesa *models.Mesa) {
		s.persist(store.KeyMesa, mesa == nil, mesa)
	})
	s.MesaSession.Subscribe(func(session *models.MesaSession) {
		s.persist(store.KeyMesaSession, session == nil, session)
	})
}

func (s *AuthService) persist(key string, absent bool, value any) {
	if absent {
		s.removeKey(key)
		return
	}
	if err := s.store.SaveJSON(key, value); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to persist session state")
	}
}

func (s *AuthService) removeKey(key string) {
	if err := s.store.RemoveItem(key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to remove session state")
	}
}

// IsAuthenticated reports whether the personal login axis holds
func (s *AuthService) IsAuthenticated() bool {
	return s.User.Get() != nil && s.Token.Get() != ""
}

// HasTable reports whether the table axis holds
func (s *AuthService) HasTable() bool {
	return s.Mesa.Get() != nil
}

// IsLoggedIn reports whether the session is fully usable: personal login
// and table validation both present. Code expiry does not flip this; an
// expired session is caught by the backend's next 401.
func (s *AuthService) IsLoggedIn() bool {
	return s.IsAuthenticated() && s.HasTable()
}

// TokenValue returns the current bearer token, for the auth transport
// and the realtime handshake.
func (s *AuthService) TokenValue() string {
	return s.Token.Get()
}

// Login creates the diner profile on the backend and stores the issued
// identity and token. Failures become error state, never a panic or a
// propagated error.
func (s *AuthService) Login(nombre, email, telefono string) {
	req := models.LoginRequest{
		Nombre:          nombre,
		Email:           email,
		Telefono:        telefono,
		DuracionMinutos: s.duracionMinutos,
	}
	if err := utils.ValidateStruct(req); err != nil {
		s.Error.Set(err.Error())
		return
	}

	s.Loading.Set(true)
	s.Error.Set("")
	defer s.Loading.Set(false)

	resp, err := s.api.CrearCliente(req)
	if err != nil {
		s.log.Error().Err(err).Msg("login failed")
		s.Error.Set("Error al iniciar sesión")
		s.toasts.Error("Error al iniciar sesión", "")
		return
	}

	user := resp.User
	s.Success.Set("Login exitoso")
	s.User.Set(&user)
	s.Token.Set(resp.Token)
	s.log.Info().Str("cliente_id", user.ClienteID).Msg("logged in")
}

// ValidateMesa checks a table access code with the backend and, on
// success, opens a new table session with the fixed code window.
func (s *AuthService) ValidateMesa(mesaID, codigo string) {
	if err := utils.ValidateCodigo(codigo); err != nil {
		s.MesaError.Set(err.Error())
		return
	}

	s.MesaLoading.Set(true)
	s.MesaError.Set("")
	defer s.MesaLoading.Set(false)

	mesa, err := s.api.ValidarMesa(models.ValidateMesaRequest{MesaID: mesaID, Codigo: codigo})
	if err != nil {
		message := "Código incorrecto. Intentá de nuevo."
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			message = apiErr.Message
		}
		s.log.Warn().Err(err).Str("mesa_id", mesaID).Msg("mesa validation failed")
		s.MesaError.Set(message)
		return
	}

	session := models.NewMesaSession(*mesa, s.now())
	s.Mesa.Set(mesa)
	s.MesaSession.Set(&session)
	s.MesaSuccess.Set("Mesa validada")
	s.log.Info().Str("mesa_id", mesa.MesaID).Int("numero", mesa.Numero).Msg("mesa validated")
}

// Logout ends the whole session: both axes are cleared and the
// session-ended event tells every subscriber the sitting is over.
func (s *AuthService) Logout() {
	s.User.Set(nil)
	s.Token.Set("")
	s.Mesa.Set(nil)
	s.MesaSession.Set(nil)
	s.clearStatus()
	s.notifySessionEnded()
	s.log.Info().Msg("logged out")
}

// LogoutMesa clears only the table axis. The sitting ends with the
// table, so the session-ended event still fires.
func (s *AuthService) LogoutMesa() {
	s.Mesa.Set(nil)
	s.MesaSession.Set(nil)
	s.MesaError.Set("")
	s.MesaSuccess.Set("")
	s.notifySessionEnded()
}

// LogoutUser clears only the personal axis, keeping the validated table
// so another diner can log in at it.
func (s *AuthService) LogoutUser() {
	s.User.Set(nil)
	s.Token.Set("")
	s.Error.Set("")
	s.Success.Set("")
}

func (s *AuthService) clearStatus() {
	s.Error.Set("")
	s.Success.Set("")
	s.MesaError.Set("")
	s.MesaSuccess.Set("")
}

// SubscribeSessionEnded registers fn to run when the sitting ends
// (logout or table close). It returns an unsubscribe function. The order
// container clears its cached list through this event instead of being
// called directly.
func (s *AuthService) SubscribeSessionEnded(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.sessionEnded[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.sessionEnded, id)
		s.mu.Unlock()
	}
}

func (s *AuthService) notifySessionEnded() {
	s.mu.Lock()
	subs := make([]func(), 0, len(s.sessionEnded))
	for _, fn := range s.sessionEnded {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

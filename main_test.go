package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restofacil/mesa-client/config"
	"github.com/restofacil/mesa-client/models"
	"github.com/restofacil/mesa-client/tests/testutil"
)

// syncBuffer serializes writes; toasts print from whatever goroutine
// raised them
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(t *testing.T, backend *testutil.FakeBackend) (*app, *syncBuffer) {
	t.Helper()

	cfg := &config.Config{
		APIURL:          backend.URL(),
		SocketURL:       backend.URL(),
		StorePath:       ":memory:",
		GoEnv:           "test",
		LogLevel:        "disabled",
		DuracionMinutos: 300,
	}
	out := &syncBuffer{}
	a, err := newApp(cfg, config.NewLogger(cfg), out)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, out
}

func runScript(t *testing.T, a *app, out *syncBuffer, commands ...string) string {
	t.Helper()
	a.Run(strings.NewReader(strings.Join(commands, "\n") + "\n"))
	return out.String()
}

func TestDispatchUnknownCommand(t *testing.T) {
	a, buf := newTestApp(t, testutil.NewFakeBackend(t))
	out := runScript(t, a, buf, "bailar", "salir")
	assert.Contains(t, out, "Comando desconocido: bailar")
}

func TestHelpListsCommands(t *testing.T) {
	a, buf := newTestApp(t, testutil.NewFakeBackend(t))
	out := runScript(t, a, buf, "ayuda", "salir")
	for _, command := range []string{"mesa", "login", "menu", "pedir", "calificar", "mozo"} {
		assert.Contains(t, out, command)
	}
}

func TestSessionCommands(t *testing.T) {
	a, buf := newTestApp(t, testutil.NewFakeBackend(t))

	out := runScript(t, a, buf,
		"mesa mesa-7 1234",
		"login Ana ana@example.com",
		"estado",
		"salir",
	)

	assert.Contains(t, out, "Mesa 7 validada")
	assert.Contains(t, out, "Hola, Ana")
	assert.Contains(t, out, "Mesa: 7")
	assert.True(t, a.auth.IsLoggedIn())
}

func TestWrongCodeSurfaces(t *testing.T) {
	a, buf := newTestApp(t, testutil.NewFakeBackend(t))

	out := runScript(t, a, buf, "mesa mesa-7 9999", "salir")

	assert.Contains(t, out, "Código incorrecto")
	assert.False(t, a.auth.HasTable())
}

func TestFullOrderScript(t *testing.T) {
	a, buf := newTestApp(t, testutil.NewFakeBackend(t))

	out := runScript(t, a, buf,
		"mesa mesa-7 1234",
		"login Ana",
		"menu",
		"agregar p1 2 sin sal",
		"carrito",
		"pedir efectivo para compartir",
		"pedidos",
		"salir",
	)

	assert.Contains(t, out, "Milanesa napolitana")
	assert.Contains(t, out, "Pedido #1 confirmado")
	assert.Contains(t, out, "Pendientes: 1")
	assert.Equal(t, 0, a.cart.ItemCount(), "Checkout should empty the cart")
	assert.Equal(t, 1, a.pedidos.CantidadPedidos())
}

func TestPedirRequiresSession(t *testing.T) {
	a, buf := newTestApp(t, testutil.NewFakeBackend(t))

	out := runScript(t, a, buf, "pedir efectivo", "salir")

	assert.Contains(t, out, "Validá la mesa e iniciá sesión antes de pedir")
}

func TestToastsPrintFromSocketGoroutine(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	a, buf := newTestApp(t, backend)

	runScript(t, a, buf,
		"mesa mesa-7 1234",
		"login Ana",
		"menu",
		"agregar p1 1",
		"pedir efectivo",
		"salir",
	)

	pedido := a.pedidos.UltimoPedido()
	require.NotNil(t, pedido)

	// The push lands on the socket read goroutine; its toast must print
	// through the same writer the command loop used
	require.Eventually(t, func() bool {
		return backend.PushEstado(models.EstadoCambio{
			PedidoID:     pedido.PedidoID,
			NumeroPedido: pedido.NumeroPedido,
			Estado:       "Entregado",
		}) == nil
	}, 3*time.Second, 50*time.Millisecond, "The channel should still be up after the command loop ends")

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "Estado: Entregado")
	}, 3*time.Second, 10*time.Millisecond)
}

func TestLogoutClearsSittingState(t *testing.T) {
	a, buf := newTestApp(t, testutil.NewFakeBackend(t))

	runScript(t, a, buf,
		"mesa mesa-7 1234",
		"login Ana",
		"menu",
		"agregar p1 1",
		"pedir app",
		"logout",
		"salir",
	)

	assert.False(t, a.auth.IsLoggedIn())
	assert.False(t, a.pedidos.HayPedidosEnSesion())
	assert.Equal(t, 0, a.cart.ItemCount())
}

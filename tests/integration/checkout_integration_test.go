package integration

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/restofacil/mesa-client/config"
	"github.com/restofacil/mesa-client/middleware"
	"github.com/restofacil/mesa-client/models"
	"github.com/restofacil/mesa-client/services"
	"github.com/restofacil/mesa-client/store"
	"github.com/restofacil/mesa-client/tests/testutil"
)

// pedidoDTOFor builds a one-line order for the authenticated session
func pedidoDTOFor(auth *services.AuthService) models.CreatePedidoDTO {
	dto := models.CreatePedidoDTO{
		Productos: []models.ProductoPedido{
			{ProductoID: "p1", Cantidad: 2, PrecioUnitario: 4500},
		},
		Nota: "sin sal",
	}
	if user := auth.User.Get(); user != nil {
		dto.ClienteID = user.ClienteID
		dto.ClienteNombre = user.Nombre
	}
	if mesa := auth.Mesa.Get(); mesa != nil {
		dto.MesaID = mesa.MesaID
	}
	return dto
}

// CheckoutIntegrationTestSuite runs the two-phase checkout against the
// in-process backend through the real HTTP stack.
type CheckoutIntegrationTestSuite struct {
	suite.Suite
	backend *testutil.FakeBackend
	store   *store.Store
	auth    *services.AuthService
	pedidos *services.PedidoService
	cart    *services.CartService
	menu    *services.ProductService
	ratings *services.CalificacionService
}

// SetupSuite runs once before all tests
func (suite *CheckoutIntegrationTestSuite) SetupSuite() {
	os.Setenv("GO_ENV", "test")
	testutil.RequireTestEnvironment(suite.T())
}

// SetupTest builds a fresh, fully logged-in client stack
func (suite *CheckoutIntegrationTestSuite) SetupTest() {
	suite.backend = testutil.NewFakeBackend(suite.T())

	st, err := store.Open(":memory:")
	suite.Require().NoError(err)
	suite.store = st

	cfg := &config.Config{APIURL: suite.backend.URL(), DuracionMinutos: 300}
	toasts := services.NewToastService()

	var auth *services.AuthService
	api := services.NewAPIClient(cfg, &middleware.AuthTransport{
		Token: func() string {
			if auth == nil {
				return ""
			}
			return auth.TokenValue()
		},
	})
	auth = services.NewAuthService(api, st, toasts, zerolog.Nop(), cfg.DuracionMinutos)
	suite.auth = auth
	suite.pedidos = services.NewPedidoService(api, st, toasts, zerolog.Nop())
	suite.cart = services.NewCartService(st, zerolog.Nop())
	suite.menu = services.NewProductService(api, toasts, zerolog.Nop())
	suite.ratings = services.NewCalificacionService(api, suite.pedidos, toasts, zerolog.Nop())

	suite.auth.ValidateMesa("mesa-7", "1234")
	suite.auth.Login("Ana", "", "")
	suite.Require().True(suite.auth.IsLoggedIn())
}

// TearDownTest runs after each test
func (suite *CheckoutIntegrationTestSuite) TearDownTest() {
	suite.store.Close()
}

// TestCheckoutWorkflow_MenuCartAndOrder is the core diner flow: load the
// menu, fill the cart, place and pay the order.
func (suite *CheckoutIntegrationTestSuite) TestCheckoutWorkflow_MenuCartAndOrder() {
	suite.menu.LoadMenu()
	suite.Require().Empty(suite.menu.Error.Get())
	suite.Len(suite.menu.Productos.Get(), 2)
	suite.Len(suite.menu.Categorias.Get(), 2)

	milanesa := suite.menu.ProductoByID("p1")
	suite.Require().NotNil(milanesa)
	suite.cart.AddToCart(*milanesa, 2, "sin sal")

	user := suite.auth.User.Get()
	record, err := suite.pedidos.CreatePedidoConPago(models.CreatePedidoDTO{
		ClienteID:     user.ClienteID,
		ClienteNombre: user.Nombre,
		MesaID:        suite.auth.Mesa.Get().MesaID,
		Productos:     suite.cart.ToProductosPedido(),
		Nota:          "sin sal",
	}, "efectivo")

	suite.Require().NoError(err)
	suite.Equal(1, record.NumeroPedido)
	suite.Equal(models.EstadoPendiente, record.Estado)
	suite.InDelta(9000*1.21, record.MontoFinal, 0.01, "The final amount carries 21% IVA")
	suite.Equal("efectivo", record.MedioDePago)

	created, found := suite.backend.Pedido(record.PedidoID)
	suite.True(found, "The order should exist server-side")
	suite.Equal("mesa-7", created.MesaID)
}

// TestCheckoutWorkflow_FollowUpOrderReferencesParent verifies the second
// order of a sitting carries the first order's id.
func (suite *CheckoutIntegrationTestSuite) TestCheckoutWorkflow_FollowUpOrderReferencesParent() {
	first, err := suite.pedidos.CreatePedidoConPago(pedidoDTOFor(suite.auth), "app")
	suite.Require().NoError(err)

	dto := pedidoDTOFor(suite.auth)
	dto.PedidoPadreID = suite.pedidos.PedidoPadre().PedidoID
	second, err := suite.pedidos.CreatePedidoConPago(dto, "app")
	suite.Require().NoError(err)

	suite.Equal(first.PedidoID, second.PedidoPadreID)
	suite.Len(suite.pedidos.PedidosHijos(), 1)
	suite.Equal(2, suite.pedidos.CantidadPedidos())
	suite.InDelta(first.MontoFinal+second.MontoFinal, suite.pedidos.TotalSesion(), 0.01)
}

// TestCheckoutWorkflow_EmptyOrderRejected verifies the backend's error
// surfaces without caching anything.
func (suite *CheckoutIntegrationTestSuite) TestCheckoutWorkflow_EmptyOrderRejected() {
	dto := pedidoDTOFor(suite.auth)
	dto.Productos = nil

	record, err := suite.pedidos.CreatePedidoConPago(dto, "efectivo")

	suite.Error(err)
	suite.Nil(record)
	suite.False(suite.pedidos.HayPedidosEnSesion())
}

// TestCheckoutWorkflow_RatingAttaches verifies a rating round-trips and
// lands on the cached order.
func (suite *CheckoutIntegrationTestSuite) TestCheckoutWorkflow_RatingAttaches() {
	record, err := suite.pedidos.CreatePedidoConPago(pedidoDTOFor(suite.auth), "tarjeta")
	suite.Require().NoError(err)

	created, err := suite.ratings.CrearCalificacion(models.Calificacion{
		PedidoID:      record.PedidoID,
		Puntuacion:    5,
		Resena:        "excelente",
		NombreCliente: "Ana",
	})

	suite.Require().NoError(err)
	suite.NotEmpty(created.CalificacionID)

	cached := suite.pedidos.PedidoByID(record.PedidoID)
	suite.Require().NotNil(cached.Calificacion)
	suite.Equal(5, cached.Calificacion.Puntuacion)
}

// TestCheckoutWorkflow_SessionEndClearsOrders verifies the session-ended
// event empties the order cache and its stored key.
func (suite *CheckoutIntegrationTestSuite) TestCheckoutWorkflow_SessionEndClearsOrders() {
	_, err := suite.pedidos.CreatePedidoConPago(pedidoDTOFor(suite.auth), "efectivo")
	suite.Require().NoError(err)

	detach := suite.auth.SubscribeSessionEnded(suite.pedidos.LimpiarSesion)
	defer detach()

	suite.auth.Logout()

	suite.False(suite.pedidos.HayPedidosEnSesion())
	_, stored := suite.store.GetItem(store.KeyPedidosMesa)
	suite.False(stored)
}

func TestCheckoutIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(CheckoutIntegrationTestSuite))
}

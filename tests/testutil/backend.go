// Package testutil provides shared helpers for the integration and
// acceptance suites, chiefly FakeBackend: an in-process rendition of the
// table-ordering backend with the same envelope, routes and realtime
// channel the production service exposes.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/restofacil/mesa-client/models"
	"github.com/restofacil/mesa-client/services"
)

// FakeBackend serves the backend API and the realtime channel over an
// httptest server. State lives in memory; each test gets a fresh one.
type FakeBackend struct {
	Server *httptest.Server

	mu           sync.Mutex
	mesas        map[string]models.Mesa   // mesa_id -> mesa, Codigo holds the valid code
	tokens       map[string]models.User   // token -> issued user
	pedidos      map[string]models.Pedido // pedido_id -> created order
	nextNumero   int
	productos    []models.Product
	categorias   []models.Categoria
	revoked      bool // when set, every authenticated route answers 401
	conns        map[*websocket.Conn]bool
	authFrames   []map[string]any
	connWriteMus map[*websocket.Conn]*sync.Mutex
}

// NewFakeBackend starts the fake with one known table (mesa-7, code 1234)
// and a small menu.
func NewFakeBackend(t *testing.T) *FakeBackend {
	gin.SetMode(gin.TestMode)

	b := &FakeBackend{
		mesas: map[string]models.Mesa{
			"mesa-7": {MesaID: "mesa-7", Numero: 7, Codigo: "1234"},
		},
		tokens:     make(map[string]models.User),
		pedidos:    make(map[string]models.Pedido),
		nextNumero: 0,
		productos: []models.Product{
			{ProductoID: "p1", Nombre: "Milanesa napolitana", PrecioUnitario: 4500, CategoriaID: 1, Stock: 10},
			{ProductoID: "p2", Nombre: "Flan con dulce", PrecioUnitario: 1800, CategoriaID: 2, Stock: 10},
		},
		categorias: []models.Categoria{
			{CategoriaID: 1, Nombre: "Platos", Emoji: "🍽️"},
			{CategoriaID: 2, Nombre: "Postres", Emoji: "🍮"},
		},
		conns:        make(map[*websocket.Conn]bool),
		connWriteMus: make(map[*websocket.Conn]*sync.Mutex),
	}

	b.Server = httptest.NewServer(b.router())
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL clients should point API_URL at
func (b *FakeBackend) URL() string {
	return b.Server.URL
}

func (b *FakeBackend) router() *gin.Engine {
	router := gin.New()
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	router.POST("/cliente/crear", b.crearCliente)
	router.POST("/mesa/validar", b.validarMesa)
	router.GET("/mesa/mesa/:id", b.getMesa)
	router.GET("/producto/productos", b.getProductos)
	router.GET("/producto/categorias", b.getCategorias)

	authed := router.Group("/", b.requireAuth)
	authed.POST("/pedido/crear", b.crearPedido)
	authed.POST("/pago/crear", b.crearPago)
	authed.POST("/calificacion/crear", b.crearCalificacion)

	router.GET("/ws", b.serveWs)
	return router
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

// RevokeSessions makes every authenticated route answer 401, simulating
// expired tokens server-side.
func (b *FakeBackend) RevokeSessions() {
	b.mu.Lock()
	b.revoked = true
	b.mu.Unlock()
}

func (b *FakeBackend) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if len(header) < 8 || header[:7] != "Bearer " {
		fail(c, http.StatusUnauthorized, "NO_TOKEN", "Token requerido")
		c.Abort()
		return
	}

	b.mu.Lock()
	_, known := b.tokens[header[7:]]
	revoked := b.revoked
	b.mu.Unlock()

	if !known || revoked {
		fail(c, http.StatusUnauthorized, "TOKEN_INVALIDO", "Sesión expirada")
		c.Abort()
		return
	}
	c.Next()
}

func (b *FakeBackend) crearCliente(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Nombre == "" {
		fail(c, http.StatusBadRequest, "DATOS_INVALIDOS", "Nombre requerido")
		return
	}

	user := models.User{
		ClienteID: uuid.NewString(),
		Nombre:    req.Nombre,
		Email:     req.Email,
		Telefono:  req.Telefono,
		Rol:       "cliente",
	}
	token := uuid.NewString()

	b.mu.Lock()
	b.tokens[token] = user
	b.mu.Unlock()

	ok(c, http.StatusCreated, models.LoginResponse{Token: token, User: user})
}

func (b *FakeBackend) validarMesa(c *gin.Context) {
	var req models.ValidateMesaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "DATOS_INVALIDOS", "Datos inválidos")
		return
	}

	b.mu.Lock()
	mesa, found := b.mesas[req.MesaID]
	b.mu.Unlock()

	if !found {
		fail(c, http.StatusNotFound, "MESA_NO_ENCONTRADA", "Mesa no encontrada")
		return
	}
	if mesa.Codigo != req.Codigo {
		fail(c, http.StatusBadRequest, "CODIGO_INVALIDO", "Código incorrecto. Intentá de nuevo.")
		return
	}

	ok(c, http.StatusOK, models.Mesa{MesaID: mesa.MesaID, Numero: mesa.Numero})
}

func (b *FakeBackend) getMesa(c *gin.Context) {
	b.mu.Lock()
	mesa, found := b.mesas[c.Param("id")]
	b.mu.Unlock()

	if !found {
		fail(c, http.StatusNotFound, "MESA_NO_ENCONTRADA", "Mesa no encontrada")
		return
	}
	ok(c, http.StatusOK, models.Mesa{MesaID: mesa.MesaID, Numero: mesa.Numero})
}

func (b *FakeBackend) getProductos(c *gin.Context) {
	ok(c, http.StatusOK, b.productos)
}

func (b *FakeBackend) getCategorias(c *gin.Context) {
	ok(c, http.StatusOK, b.categorias)
}

func (b *FakeBackend) crearPedido(c *gin.Context) {
	var dto models.CreatePedidoDTO
	if err := c.ShouldBindJSON(&dto); err != nil || len(dto.Productos) == 0 {
		fail(c, http.StatusBadRequest, "DATOS_INVALIDOS", "El pedido necesita productos")
		return
	}

	total := 0.0
	for _, p := range dto.Productos {
		total += p.PrecioUnitario * float64(p.Cantidad)
	}

	b.mu.Lock()
	b.nextNumero++
	pedido := models.Pedido{
		PedidoID:      uuid.NewString(),
		NumeroPedido:  b.nextNumero,
		ClienteID:     dto.ClienteID,
		NombreCliente: dto.ClienteNombre,
		MesaID:        dto.MesaID,
		Nota:          dto.Nota,
		PrecioTotal:   total,
		Estado:        "pendiente",
		CreatedAt:     time.Now(),
		PedidoPadreID: dto.PedidoPadreID,
	}
	b.pedidos[pedido.PedidoID] = pedido
	b.mu.Unlock()

	ok(c, http.StatusCreated, models.PedidoResponse{Pedido: pedido, Productos: dto.Productos})
}

func (b *FakeBackend) crearPago(c *gin.Context) {
	var dto models.CreatePagoDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		fail(c, http.StatusBadRequest, "DATOS_INVALIDOS", "Datos inválidos")
		return
	}

	b.mu.Lock()
	pedido, found := b.pedidos[dto.PedidoID]
	b.mu.Unlock()

	if !found {
		fail(c, http.StatusNotFound, "PEDIDO_NO_ENCONTRADO", "Pedido no encontrado")
		return
	}

	iva := pedido.PrecioTotal * 0.21
	ok(c, http.StatusCreated, models.PagoResponse{
		PagoID:      uuid.NewString(),
		PedidoID:    pedido.PedidoID,
		MedioDePago: dto.MedioPago,
		Monto:       pedido.PrecioTotal,
		IVA:         iva,
		MontoFinal:  pedido.PrecioTotal + iva,
		CreatedAt:   time.Now(),
	})
}

func (b *FakeBackend) crearCalificacion(c *gin.Context) {
	var calificacion models.Calificacion
	if err := c.ShouldBindJSON(&calificacion); err != nil {
		fail(c, http.StatusBadRequest, "DATOS_INVALIDOS", "Datos inválidos")
		return
	}
	if calificacion.Puntuacion < 1 || calificacion.Puntuacion > 5 {
		fail(c, http.StatusBadRequest, "PUNTUACION_INVALIDA", "La puntuación debe estar entre 1 y 5")
		return
	}

	calificacion.CalificacionID = uuid.NewString()
	calificacion.CreatedAt = time.Now()
	ok(c, http.StatusCreated, calificacion)
}

var upgrader = websocket.Upgrader{}

func (b *FakeBackend) serveWs(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writeMu := &sync.Mutex{}
	b.mu.Lock()
	b.conns[conn] = true
	b.connWriteMus[conn] = writeMu
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.conns, conn)
		delete(b.connWriteMus, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	for {
		var frame services.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Event {
		case "authenticate":
			var payload map[string]any
			if err := json.Unmarshal(frame.Data, &payload); err == nil {
				b.mu.Lock()
				b.authFrames = append(b.authFrames, payload)
				b.mu.Unlock()
			}
			b.write(conn, writeMu, services.Frame{Event: "authenticated"})
		case "ping":
			b.write(conn, writeMu, services.Frame{Event: "pong"})
		case "mozo:llamada":
			b.write(conn, writeMu, services.Frame{Event: "mozo:llamada-confirmada"})
		}
	}
}

func (b *FakeBackend) write(conn *websocket.Conn, writeMu *sync.Mutex, frame services.Frame) {
	writeMu.Lock()
	defer writeMu.Unlock()
	conn.WriteJSON(frame)
}

// PushEstado broadcasts an order-status change to every connected client
func (b *FakeBackend) PushEstado(cambio models.EstadoCambio) error {
	data, err := json.Marshal(cambio)
	if err != nil {
		return err
	}
	frame := services.Frame{Event: "pedido:estado-actualizado", Data: data}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		return fmt.Errorf("no connected clients")
	}
	for conn := range b.conns {
		b.write(conn, b.connWriteMus[conn], frame)
	}
	return nil
}

// AuthFrames returns the authenticate payloads received so far
func (b *FakeBackend) AuthFrames() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	frames := make([]map[string]any, len(b.authFrames))
	copy(frames, b.authFrames)
	return frames
}

// Pedido returns one created order by id
func (b *FakeBackend) Pedido(pedidoID string) (models.Pedido, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pedido, found := b.pedidos[pedidoID]
	return pedido, found
}

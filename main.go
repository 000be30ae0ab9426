package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/restofacil/mesa-client/config"
	"github.com/restofacil/mesa-client/middleware"
	"github.com/restofacil/mesa-client/models"
	"github.com/restofacil/mesa-client/services"
	"github.com/restofacil/mesa-client/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := config.NewLogger(cfg)
	log.Info().Str("api_url", cfg.APIURL).Msg("starting mesa client")

	app, err := newApp(cfg, log, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer app.Close()

	app.Run(os.Stdin)
}

// app wires every service together. The composition roughly mirrors the
// backend's module layout: one container per concern, talking through
// signals instead of direct calls.
type app struct {
	cfg *config.Config
	out io.Writer

	store         *store.Store
	toasts        *services.ToastService
	auth          *services.AuthService
	pedidos       *services.PedidoService
	cart          *services.CartService
	productos     *services.ProductService
	calificacion  *services.CalificacionService
	socket        *services.SocketService
	detachDrain   func()
	detachSession func()
	detachToasts  func()
}

// newApp wires the whole client. The writer is fixed at construction
// because the toast subscriber prints from whatever goroutine raised
// the toast, including the socket read loop.
func newApp(cfg *config.Config, log zerolog.Logger, out io.Writer) (*app, error) {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	toasts := services.NewToastService()

	// The auth service is created before the API client so the transport
	// can pull the live token; the 401 hook closes the loop.
	var auth *services.AuthService
	transport := &middleware.AuthTransport{
		Token: func() string {
			if auth == nil {
				return ""
			}
			return auth.TokenValue()
		},
		OnUnauthorized: func() {
			if auth != nil {
				toasts.Warning("Sesión expirada", "Iniciá sesión de nuevo")
				auth.Logout()
			}
		},
	}
	api := services.NewAPIClient(cfg, transport)

	auth = services.NewAuthService(api, st, toasts, log, cfg.DuracionMinutos)
	pedidos := services.NewPedidoService(api, st, toasts, log)
	cart := services.NewCartService(st, log)
	productos := services.NewProductService(api, toasts, log)
	calificacion := services.NewCalificacionService(api, pedidos, toasts, log)
	socket := services.NewSocketService(auth, toasts, cfg.SocketURL, log)

	a := &app{
		cfg:          cfg,
		out:          out,
		store:        st,
		toasts:       toasts,
		auth:         auth,
		pedidos:      pedidos,
		cart:         cart,
		productos:    productos,
		calificacion: calificacion,
		socket:       socket,
	}

	// Pushed status changes flow into the order container, and the end
	// of a sitting clears everything tied to it.
	a.detachDrain = services.DrainEstadoCambios(socket, pedidos)
	a.detachSession = auth.SubscribeSessionEnded(func() {
		pedidos.LimpiarSesion()
		cart.ResetCart()
		socket.Disconnect()
	})
	a.detachToasts = toasts.Toasts.Subscribe(func(list []services.Toast) {
		if len(list) == 0 {
			return
		}
		last := list[len(list)-1]
		fmt.Fprintf(a.out, "[%s] %s", last.Type, last.Title)
		if last.Message != "" {
			fmt.Fprintf(a.out, ": %s", last.Message)
		}
		fmt.Fprintln(a.out)
	})

	return a, nil
}

func (a *app) Close() {
	a.detachToasts()
	a.detachSession()
	a.detachDrain()
	a.socket.Disconnect()
	a.store.Close()
}

// Run reads commands until EOF or "salir"
func (a *app) Run(in io.Reader) {
	out := a.out
	fmt.Fprintln(out, "Mesa client. Escribí 'ayuda' para ver los comandos.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if !a.dispatch(out, fields[0], fields[1:]) {
			return
		}
	}
}

// dispatch runs one command; false means quit
func (a *app) dispatch(out io.Writer, command string, args []string) bool {
	switch command {
	case "ayuda", "help":
		a.printHelp(out)
	case "mesa":
		a.cmdMesa(out, args)
	case "login":
		a.cmdLogin(out, args)
	case "menu":
		a.cmdMenu(out)
	case "agregar":
		a.cmdAgregar(out, args)
	case "carrito":
		a.cmdCarrito(out)
	case "quitar":
		a.cmdQuitar(out, args)
	case "pedir":
		a.cmdPedir(out, args)
	case "pedidos":
		a.cmdPedidos(out)
	case "calificar":
		a.cmdCalificar(out, args)
	case "mozo":
		a.socket.LlamarMozo()
	case "ping":
		a.socket.SendPing()
	case "estado":
		a.cmdEstado(out)
	case "logout":
		a.auth.Logout()
		fmt.Fprintln(out, "Sesión cerrada")
	case "salir", "exit", "quit":
		return false
	default:
		fmt.Fprintf(out, "Comando desconocido: %s\n", command)
	}
	return true
}

func (a *app) printHelp(out io.Writer) {
	fmt.Fprintln(out, `Comandos:
  mesa <mesa_id> <codigo>                  validar la mesa escaneada
  login <nombre> [email] [telefono]        crear la sesión del cliente
  menu                                     ver productos y categorías
  agregar <producto_id> [cantidad] [nota]  sumar un producto al carrito
  carrito                                  ver el carrito
  quitar <producto_id>                     sacar un producto del carrito
  pedir <medio_pago> [nota]                confirmar pedido y pago
  pedidos                                  ver los pedidos de la mesa
  calificar <pedido_id> <1-5> [reseña]     calificar un pedido entregado
  mozo                                     llamar al mozo
  ping                                     probar la conexión en vivo
  estado                                   ver el estado de la sesión
  logout                                   cerrar sesión
  salir                                    terminar`)
}

func (a *app) cmdMesa(out io.Writer, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(out, "Uso: mesa <mesa_id> <codigo>")
		return
	}
	a.auth.ValidateMesa(args[0], args[1])
	if err := a.auth.MesaError.Get(); err != "" {
		fmt.Fprintln(out, err)
		return
	}
	mesa := a.auth.Mesa.Get()
	fmt.Fprintf(out, "Mesa %d validada\n", mesa.Numero)
	a.connectIfReady()
}

func (a *app) cmdLogin(out io.Writer, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(out, "Uso: login <nombre> [email] [telefono]")
		return
	}
	email, telefono := "", ""
	if len(args) > 1 {
		email = args[1]
	}
	if len(args) > 2 {
		telefono = args[2]
	}

	a.auth.Login(args[0], email, telefono)
	if err := a.auth.Error.Get(); err != "" {
		fmt.Fprintln(out, err)
		return
	}
	fmt.Fprintf(out, "Hola, %s\n", a.auth.User.Get().Nombre)
	a.connectIfReady()
}

// connectIfReady brings the realtime channel up once both session axes hold
func (a *app) connectIfReady() {
	if a.auth.IsLoggedIn() && !a.socket.IsConnected() {
		a.socket.Connect()
	}
}

func (a *app) cmdMenu(out io.Writer) {
	a.productos.LoadMenu()
	if err := a.productos.Error.Get(); err != "" {
		fmt.Fprintln(out, err)
		return
	}

	for _, categoria := range a.productos.Categorias.Get() {
		fmt.Fprintf(out, "%s %s\n", categoria.Emoji, categoria.Nombre)
		for _, p := range a.productos.ProductosPorCategoria(categoria.CategoriaID) {
			fmt.Fprintf(out, "  %-8s %-30s $%.2f\n", p.ProductoID, p.Nombre, p.PrecioUnitario)
		}
	}
}

func (a *app) cmdAgregar(out io.Writer, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(out, "Uso: agregar <producto_id> [cantidad] [nota]")
		return
	}

	producto := a.productos.ProductoByID(args[0])
	if producto == nil {
		fmt.Fprintln(out, "Producto no encontrado; probá 'menu' primero")
		return
	}

	cantidad := 1
	if len(args) > 1 {
		if parsed, err := strconv.Atoi(args[1]); err == nil {
			cantidad = parsed
		}
	}
	notas := ""
	if len(args) > 2 {
		notas = strings.Join(args[2:], " ")
	}

	a.cart.AddToCart(*producto, cantidad, notas)
	fmt.Fprintf(out, "%s x%d agregado. Total: $%.2f\n", producto.Nombre, cantidad, a.cart.TotalPrice())
}

func (a *app) cmdCarrito(out io.Writer) {
	items := a.cart.Cart.Get()
	if len(items) == 0 {
		fmt.Fprintln(out, "El carrito está vacío")
		return
	}
	for _, item := range items {
		fmt.Fprintf(out, "  %-30s x%d  $%.2f", item.Producto.Nombre, item.Cantidad, item.Subtotal())
		if item.Notas != "" {
			fmt.Fprintf(out, "  (%s)", item.Notas)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Total: $%.2f\n", a.cart.TotalPrice())
}

func (a *app) cmdQuitar(out io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(out, "Uso: quitar <producto_id>")
		return
	}
	a.cart.RemoveFromCart(args[0])
	fmt.Fprintf(out, "Total: $%.2f\n", a.cart.TotalPrice())
}

func (a *app) cmdPedir(out io.Writer, args []string) {
	if !a.auth.IsLoggedIn() {
		fmt.Fprintln(out, "Validá la mesa e iniciá sesión antes de pedir")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(out, "Uso: pedir <efectivo|app|tarjeta> [nota]")
		return
	}
	if a.cart.ItemCount() == 0 {
		fmt.Fprintln(out, "El carrito está vacío")
		return
	}

	user := a.auth.User.Get()
	mesa := a.auth.Mesa.Get()
	dto := models.CreatePedidoDTO{
		ClienteID:     user.ClienteID,
		ClienteNombre: user.Nombre,
		MesaID:        mesa.MesaID,
		Productos:     a.cart.ToProductosPedido(),
		Nota:          strings.Join(args[1:], " "),
	}
	// Follow-up orders reference the first order of the sitting
	if padre := a.pedidos.PedidoPadre(); padre != nil {
		dto.PedidoPadreID = padre.PedidoID
	}

	record, err := a.pedidos.CreatePedidoConPago(dto, args[0])
	if err != nil {
		fmt.Fprintf(out, "No se pudo completar el pedido: %v\n", err)
		return
	}

	a.cart.ResetCart()
	fmt.Fprintf(out, "Pedido #%d confirmado. Total con IVA: $%.2f\n", record.NumeroPedido, record.MontoFinal)
}

func (a *app) cmdPedidos(out io.Writer) {
	if !a.pedidos.HayPedidosEnSesion() {
		fmt.Fprintln(out, "No hay pedidos en esta sesión")
		return
	}
	for _, p := range a.pedidos.Pedidos.Get() {
		fmt.Fprintf(out, "  #%-4d %-12s $%.2f  %s\n", p.NumeroPedido, p.Estado, p.MontoFinal, p.PedidoID)
	}
	fmt.Fprintf(out, "Pendientes: %d  Entregados: %d  Total de la mesa: $%.2f\n",
		a.pedidos.PedidosPendientes(), a.pedidos.PedidosEntregados(), a.pedidos.TotalSesion())
}

func (a *app) cmdCalificar(out io.Writer, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(out, "Uso: calificar <pedido_id> <1-5> [reseña]")
		return
	}
	puntuacion, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintln(out, "La puntuación debe ser un número entre 1 y 5")
		return
	}

	nombre := ""
	if user := a.auth.User.Get(); user != nil {
		nombre = user.Nombre
	}

	_, err = a.calificacion.CrearCalificacion(models.Calificacion{
		PedidoID:      args[0],
		Puntuacion:    puntuacion,
		Resena:        strings.Join(args[2:], " "),
		NombreCliente: nombre,
	})
	if err != nil {
		fmt.Fprintf(out, "No se pudo enviar la calificación: %v\n", err)
	}
}

func (a *app) cmdEstado(out io.Writer) {
	fmt.Fprintf(out, "Conexión: %s\n", a.socket.Status.Get())
	if user := a.auth.User.Get(); user != nil {
		fmt.Fprintf(out, "Cliente: %s (%s)\n", user.Nombre, user.ClienteID)
	} else {
		fmt.Fprintln(out, "Cliente: sin sesión")
	}
	if mesa := a.auth.Mesa.Get(); mesa != nil {
		fmt.Fprintf(out, "Mesa: %d\n", mesa.Numero)
	} else {
		fmt.Fprintln(out, "Mesa: sin validar")
	}
	fmt.Fprintf(out, "Pedidos en la sesión: %d\n", a.pedidos.CantidadPedidos())
}

package services

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restofacil/mesa-client/models"
	"github.com/restofacil/mesa-client/store"
)

func newTestPedidoService(t *testing.T, api BackendAPI, st *store.Store) *PedidoService {
	t.Helper()
	if st == nil {
		st = setupTestStore(t)
	}
	return NewPedidoService(api, st, NewToastService(), zerolog.Nop())
}

func orderDTO() models.CreatePedidoDTO {
	return models.CreatePedidoDTO{
		ClienteID:     "c1",
		ClienteNombre: "Ana",
		MesaID:        "mesa-7",
		Productos: []models.ProductoPedido{
			{ProductoID: "p1", Cantidad: 2, PrecioUnitario: 1500},
		},
		Nota: "sin sal",
	}
}

func TestCreatePedidoConPagoSuccess(t *testing.T) {
	api := NewMockBackendAPI()
	api.CrearPedidoFn = func(dto models.CreatePedidoDTO) (*models.PedidoResponse, error) {
		return &models.PedidoResponse{
			Pedido: models.Pedido{
				PedidoID:      "ped-1",
				NumeroPedido:  12,
				ClienteID:     dto.ClienteID,
				NombreCliente: dto.ClienteNombre,
				MesaID:        dto.MesaID,
				Nota:          dto.Nota,
				PrecioTotal:   3000,
				Estado:        "pendiente",
			},
			Productos: dto.Productos,
		}, nil
	}
	api.CrearPagoFn = func(dto models.CreatePagoDTO) (*models.PagoResponse, error) {
		return &models.PagoResponse{
			PagoID:      "pago-1",
			PedidoID:    dto.PedidoID,
			MedioDePago: dto.MedioPago,
			Monto:       3000,
			IVA:         630,
			MontoFinal:  3630,
		}, nil
	}

	pedidos := newTestPedidoService(t, api, nil)
	record, err := pedidos.CreatePedidoConPago(orderDTO(), "efectivo")

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "ped-1", record.PedidoID)
	assert.Equal(t, models.EstadoPendiente, record.Estado, "Backend vocabulary should be normalized")
	assert.Equal(t, 3630.0, record.MontoFinal)
	assert.Equal(t, "pago-1", record.PagoID)

	assert.Equal(t, 1, pedidos.CantidadPedidos(), "The merged record should be cached")
	require.Len(t, api.PagosCreados, 1)
	assert.Equal(t, "ped-1", api.PagosCreados[0].PedidoID, "Payment must carry the issued order id")
	assert.Equal(t, "Pedido creado con éxito", pedidos.Success.Get())
	assert.Equal(t, "Pago creado exitosamente", pedidos.SuccessPago.Get())
}

func TestCreatePedidoConPagoRejectsUnknownMedioPago(t *testing.T) {
	api := NewMockBackendAPI()
	pedidos := newTestPedidoService(t, api, nil)

	record, err := pedidos.CreatePedidoConPago(orderDTO(), "cheque")

	require.Error(t, err)
	assert.Nil(t, record)
	assert.Empty(t, api.PedidosCreados, "Validation must run before any network call")
}

func TestCreatePedidoConPagoOrderFailure(t *testing.T) {
	api := NewMockBackendAPI()
	api.CrearPedidoFn = func(models.CreatePedidoDTO) (*models.PedidoResponse, error) {
		return nil, errors.New("service unavailable")
	}

	pedidos := newTestPedidoService(t, api, nil)
	record, err := pedidos.CreatePedidoConPago(orderDTO(), "app")

	require.Error(t, err)
	assert.Nil(t, record)
	assert.Empty(t, api.PagosCreados, "Payment must not be attempted without an order id")
	assert.Equal(t, 0, pedidos.CantidadPedidos())
	assert.Equal(t, "Error al procesar pedido y pago", pedidos.Error.Get(), "Both phases share one combined error")
}

func TestCreatePedidoConPagoPaymentFailureLeavesNoRecord(t *testing.T) {
	api := NewMockBackendAPI()
	api.CrearPedidoFn = func(dto models.CreatePedidoDTO) (*models.PedidoResponse, error) {
		return &models.PedidoResponse{
			Pedido: models.Pedido{PedidoID: "ped-9", NumeroPedido: 3, Estado: "pendiente"},
		}, nil
	}
	api.CrearPagoFn = func(models.CreatePagoDTO) (*models.PagoResponse, error) {
		return nil, errors.New("gateway timeout")
	}

	pedidos := newTestPedidoService(t, api, nil)
	record, err := pedidos.CreatePedidoConPago(orderDTO(), "tarjeta")

	require.Error(t, err)
	assert.Nil(t, record)
	assert.Contains(t, err.Error(), "ped-9", "The orphaned order id must be recoverable from the error")
	assert.Equal(t, 0, pedidos.CantidadPedidos(), "No record is cached while the order is unpaid")
	assert.Equal(t, "Error al procesar pedido y pago", pedidos.Error.Get())
	assert.Equal(t, "Error al crear pago", pedidos.ErrorPago.Get())
}

func TestCreatePedidoConPagoUnknownEstado(t *testing.T) {
	api := NewMockBackendAPI()
	api.CrearPedidoFn = func(models.CreatePedidoDTO) (*models.PedidoResponse, error) {
		return &models.PedidoResponse{
			Pedido: models.Pedido{PedidoID: "ped-2", Estado: "cancelado"},
		}, nil
	}

	pedidos := newTestPedidoService(t, api, nil)
	record, err := pedidos.CreatePedidoConPago(orderDTO(), "efectivo")

	require.Error(t, err)
	assert.Nil(t, record)
	assert.Equal(t, 0, pedidos.CantidadPedidos(), "An unknown state must never be cached as Pendiente")
}

func TestActualizarEstadoPedido(t *testing.T) {
	pedidos := newTestPedidoService(t, NewMockBackendAPI(), nil)
	pedidos.Pedidos.Set([]models.PedidoData{
		{PedidoID: "ped-1", NumeroPedido: 1, Estado: models.EstadoPendiente},
		{PedidoID: "ped-2", NumeroPedido: 2, Estado: models.EstadoPendiente},
	})

	pedidos.ActualizarEstadoPedido(models.EstadoCambio{
		PedidoID: "ped-1", NumeroPedido: 1, Estado: "en_preparacion",
	})

	list := pedidos.Pedidos.Get()
	assert.Equal(t, models.EstadoEnPreparacion, list[0].Estado)
	assert.Equal(t, models.EstadoPendiente, list[1].Estado, "Only the matching order changes")
}

func TestActualizarEstadoPedidoRaisesOneToast(t *testing.T) {
	toasts := NewToastService()
	pedidos := NewPedidoService(NewMockBackendAPI(), setupTestStore(t), toasts, zerolog.Nop())
	pedidos.Pedidos.Set([]models.PedidoData{
		{PedidoID: "o1", NumeroPedido: 1, Estado: models.EstadoPendiente},
	})

	pedidos.ActualizarEstadoPedido(models.EstadoCambio{PedidoID: "o1", NumeroPedido: 1, Estado: "Entregado"})

	assert.Equal(t, models.EstadoEntregado, pedidos.Pedidos.Get()[0].Estado)
	list := toasts.Toasts.Get()
	require.Len(t, list, 1, "Exactly one notification per applied event")
	assert.Equal(t, ToastSuccess, list[0].Type)
}

func TestActualizarEstadoPedidoIsIdempotent(t *testing.T) {
	pedidos := newTestPedidoService(t, NewMockBackendAPI(), nil)
	pedidos.Pedidos.Set([]models.PedidoData{
		{PedidoID: "ped-1", NumeroPedido: 1, Estado: models.EstadoPendiente},
	})

	cambio := models.EstadoCambio{PedidoID: "ped-1", NumeroPedido: 1, Estado: "Listo"}
	pedidos.ActualizarEstadoPedido(cambio)
	pedidos.ActualizarEstadoPedido(cambio)

	assert.Equal(t, models.EstadoListo, pedidos.Pedidos.Get()[0].Estado)
	assert.Equal(t, 1, pedidos.CantidadPedidos())
}

func TestActualizarEstadoPedidoUnknownOrderIgnored(t *testing.T) {
	pedidos := newTestPedidoService(t, NewMockBackendAPI(), nil)
	pedidos.Pedidos.Set([]models.PedidoData{
		{PedidoID: "ped-1", Estado: models.EstadoPendiente},
	})

	pedidos.ActualizarEstadoPedido(models.EstadoCambio{PedidoID: "ped-other", Estado: "Listo"})

	assert.Equal(t, models.EstadoPendiente, pedidos.Pedidos.Get()[0].Estado)
}

func TestActualizarEstadoPedidoUnknownEstadoRejected(t *testing.T) {
	pedidos := newTestPedidoService(t, NewMockBackendAPI(), nil)
	pedidos.Pedidos.Set([]models.PedidoData{
		{PedidoID: "ped-1", Estado: models.EstadoListo},
	})

	pedidos.ActualizarEstadoPedido(models.EstadoCambio{PedidoID: "ped-1", Estado: "cancelado"})

	assert.Equal(t, models.EstadoListo, pedidos.Pedidos.Get()[0].Estado, "Unknown states must not overwrite a known one")
}

func TestDerivedQueries(t *testing.T) {
	pedidos := newTestPedidoService(t, NewMockBackendAPI(), nil)
	pedidos.Pedidos.Set([]models.PedidoData{
		{PedidoID: "ped-1", ClienteID: "c1", Estado: models.EstadoEntregado, MontoFinal: 1210},
		{PedidoID: "ped-2", ClienteID: "c2", Estado: models.EstadoEnPreparacion, MontoFinal: 605, PedidoPadreID: "ped-1"},
		{PedidoID: "ped-3", ClienteID: "c1", Estado: models.EstadoPendiente, MontoFinal: 2420, PedidoPadreID: "ped-1"},
	})

	assert.Equal(t, "ped-1", pedidos.PedidoPadre().PedidoID)
	assert.Equal(t, "ped-3", pedidos.UltimoPedido().PedidoID)
	assert.Equal(t, 3, pedidos.CantidadPedidos())
	assert.Equal(t, 2, pedidos.PedidosPendientes())
	assert.Equal(t, 1, pedidos.PedidosEntregados())
	assert.InDelta(t, 4235, pedidos.TotalSesion(), 0.001)
	assert.Len(t, pedidos.PedidosByCliente("c1"), 2)
	assert.Len(t, pedidos.PedidosHijos(), 2)
	assert.True(t, pedidos.HayPedidosEnSesion())

	require.NotNil(t, pedidos.PedidoByID("ped-2"))
	assert.Nil(t, pedidos.PedidoByID("nope"))
}

func TestAttachCalificacion(t *testing.T) {
	pedidos := newTestPedidoService(t, NewMockBackendAPI(), nil)
	pedidos.Pedidos.Set([]models.PedidoData{
		{PedidoID: "ped-1", Estado: models.EstadoEntregado},
	})

	pedidos.AttachCalificacion("ped-1", models.Calificacion{PedidoID: "ped-1", Puntuacion: 5, Resena: "excelente"})

	got := pedidos.PedidoByID("ped-1")
	require.NotNil(t, got.Calificacion)
	assert.Equal(t, 5, got.Calificacion.Puntuacion)
}

func TestPedidosPersistAndRestore(t *testing.T) {
	st := setupTestStore(t)
	first := newTestPedidoService(t, NewMockBackendAPI(), st)
	first.Pedidos.Set([]models.PedidoData{
		{PedidoID: "ped-1", NumeroPedido: 4, Estado: models.EstadoListo, MontoFinal: 1210},
	})

	second := newTestPedidoService(t, NewMockBackendAPI(), st)
	require.Equal(t, 1, second.CantidadPedidos(), "Orders should survive a restart within the sitting")
	assert.Equal(t, models.EstadoListo, second.Pedidos.Get()[0].Estado)
}

func TestLimpiarSesion(t *testing.T) {
	st := setupTestStore(t)
	pedidos := newTestPedidoService(t, NewMockBackendAPI(), st)
	pedidos.Pedidos.Set([]models.PedidoData{{PedidoID: "ped-1"}})
	pedidos.Success.Set("Pedido creado con éxito")

	pedidos.LimpiarSesion()

	assert.False(t, pedidos.HayPedidosEnSesion())
	assert.Nil(t, pedidos.UltimoPedido())
	assert.Empty(t, pedidos.Success.Get())

	_, ok := st.GetItem(store.KeyPedidosMesa)
	assert.False(t, ok, "Clearing the sitting should drop the persisted list")
}

package services

import (
	"sync"

	"github.com/restofacil/mesa-client/models"
)

// MockBackendAPI is a mock implementation of BackendAPI for testing.
// Each call delegates to the corresponding Fn field when set and records
// the request it received.
type MockBackendAPI struct {
	mu sync.Mutex

	CrearClienteFn      func(models.LoginRequest) (*models.LoginResponse, error)
	ValidarMesaFn       func(models.ValidateMesaRequest) (*models.Mesa, error)
	GetMesaFn           func(string) (*models.Mesa, error)
	CrearPedidoFn       func(models.CreatePedidoDTO) (*models.PedidoResponse, error)
	CrearPagoFn         func(models.CreatePagoDTO) (*models.PagoResponse, error)
	CrearCalificacionFn func(models.Calificacion) (*models.Calificacion, error)
	GetProductosFn      func() ([]models.Product, error)
	GetCategoriasFn     func() ([]models.Categoria, error)

	PedidosCreados []models.CreatePedidoDTO
	PagosCreados   []models.CreatePagoDTO
}

var _ BackendAPI = (*MockBackendAPI)(nil)

// NewMockBackendAPI creates an empty mock; calls without a Fn return nil
func NewMockBackendAPI() *MockBackendAPI {
	return &MockBackendAPI{}
}

func (m *MockBackendAPI) CrearCliente(req models.LoginRequest) (*models.LoginResponse, error) {
	if m.CrearClienteFn != nil {
		return m.CrearClienteFn(req)
	}
	return &models.LoginResponse{}, nil
}

func (m *MockBackendAPI) ValidarMesa(req models.ValidateMesaRequest) (*models.Mesa, error) {
	if m.ValidarMesaFn != nil {
		return m.ValidarMesaFn(req)
	}
	return &models.Mesa{MesaID: req.MesaID}, nil
}

func (m *MockBackendAPI) GetMesa(mesaID string) (*models.Mesa, error) {
	if m.GetMesaFn != nil {
		return m.GetMesaFn(mesaID)
	}
	return &models.Mesa{MesaID: mesaID}, nil
}

func (m *MockBackendAPI) CrearPedido(dto models.CreatePedidoDTO) (*models.PedidoResponse, error) {
	m.mu.Lock()
	m.PedidosCreados = append(m.PedidosCreados, dto)
	m.mu.Unlock()

	if m.CrearPedidoFn != nil {
		return m.CrearPedidoFn(dto)
	}
	return &models.PedidoResponse{}, nil
}

func (m *MockBackendAPI) CrearPago(dto models.CreatePagoDTO) (*models.PagoResponse, error) {
	m.mu.Lock()
	m.PagosCreados = append(m.PagosCreados, dto)
	m.mu.Unlock()

	if m.CrearPagoFn != nil {
		return m.CrearPagoFn(dto)
	}
	return &models.PagoResponse{PedidoID: dto.PedidoID}, nil
}

func (m *MockBackendAPI) CrearCalificacion(c models.Calificacion) (*models.Calificacion, error) {
	if m.CrearCalificacionFn != nil {
		return m.CrearCalificacionFn(c)
	}
	return &c, nil
}

func (m *MockBackendAPI) GetProductos() ([]models.Product, error) {
	if m.GetProductosFn != nil {
		return m.GetProductosFn()
	}
	return nil, nil
}

func (m *MockBackendAPI) GetCategorias() ([]models.Categoria, error) {
	if m.GetCategoriasFn != nil {
		return m.GetCategoriasFn()
	}
	return nil, nil
}

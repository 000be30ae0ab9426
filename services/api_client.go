package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/restofacil/mesa-client/config"
	"github.com/restofacil/mesa-client/models"
)

// APIError carries the backend's error shape:
// {"success":false,"error":{"code":"...","message":"..."}}
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// BackendAPI is the backend surface consumed by the state containers.
// Defined as an interface so tests can substitute a mock.
type BackendAPI interface {
	CrearCliente(req models.LoginRequest) (*models.LoginResponse, error)
	ValidarMesa(req models.ValidateMesaRequest) (*models.Mesa, error)
	GetMesa(mesaID string) (*models.Mesa, error)
	CrearPedido(dto models.CreatePedidoDTO) (*models.PedidoResponse, error)
	CrearPago(dto models.CreatePagoDTO) (*models.PagoResponse, error)
	CrearCalificacion(c models.Calificacion) (*models.Calificacion, error)
	GetProductos() ([]models.Product, error)
	GetCategorias() ([]models.Categoria, error)
}

// APIClient talks JSON to the table-ordering backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ BackendAPI = (*APIClient)(nil)

// NewAPIClient creates an API client for the configured backend. The
// transport is where the bearer token and 401 handling live; pass nil to
// go out unauthenticated.
func NewAPIClient(cfg *config.Config, transport http.RoundTripper) *APIClient {
	return &APIClient{
		baseURL: strings.TrimSuffix(cfg.APIURL, "/") + "/",
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}
}

// envelope is the backend's response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do executes one JSON request and decodes the data payload into out.
func (c *APIClient) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode data from %s: %w", path, err)
		}
	}
	return nil
}

// CrearCliente registers the diner profile and returns the issued token
func (c *APIClient) CrearCliente(req models.LoginRequest) (*models.LoginResponse, error) {
	var out models.LoginResponse
	if err := c.do(http.MethodPost, "cliente/crear", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidarMesa validates a table access code
func (c *APIClient) ValidarMesa(req models.ValidateMesaRequest) (*models.Mesa, error) {
	var out models.Mesa
	if err := c.do(http.MethodPost, "mesa/validar", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMesa fetches a table by id, used right after a QR scan
func (c *APIClient) GetMesa(mesaID string) (*models.Mesa, error) {
	var out models.Mesa
	if err := c.do(http.MethodGet, "mesa/mesa/"+url.PathEscape(mesaID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CrearPedido places an order
func (c *APIClient) CrearPedido(dto models.CreatePedidoDTO) (*models.PedidoResponse, error) {
	var out models.PedidoResponse
	if err := c.do(http.MethodPost, "pedido/crear", dto, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CrearPago pays for an already created order
func (c *APIClient) CrearPago(dto models.CreatePagoDTO) (*models.PagoResponse, error) {
	var out models.PagoResponse
	if err := c.do(http.MethodPost, "pago/crear", dto, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CrearCalificacion submits a rating for a delivered order
func (c *APIClient) CrearCalificacion(calificacion models.Calificacion) (*models.Calificacion, error) {
	var out models.Calificacion
	if err := c.do(http.MethodPost, "calificacion/crear", calificacion, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProductos fetches the menu
func (c *APIClient) GetProductos() ([]models.Product, error) {
	var out []models.Product
	if err := c.do(http.MethodGet, "producto/productos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCategorias fetches the menu categories
func (c *APIClient) GetCategorias() ([]models.Categoria, error) {
	var out []models.Categoria
	if err := c.do(http.MethodGet, "producto/categorias", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

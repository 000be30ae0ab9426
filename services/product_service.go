package services

import (
	"github.com/rs/zerolog"

	"github.com/restofacil/mesa-client/models"
	"github.com/restofacil/mesa-client/signals"
)

// ProductService fetches and caches the menu for the Menu views
type ProductService struct {
	api    BackendAPI
	toasts *ToastService
	log    zerolog.Logger

	Productos  *signals.Signal[[]models.Product]
	Categorias *signals.Signal[[]models.Categoria]
	Loading    *signals.Signal[bool]
	Error      *signals.Signal[string]
}

// NewProductService creates an empty menu cache
func NewProductService(api BackendAPI, toasts *ToastService, log zerolog.Logger) *ProductService {
	return &ProductService{
		api:    api,
		toasts: toasts,
		log:    log.With().Str("component", "productos").Logger(),

		Productos:  signals.New([]models.Product(nil)),
		Categorias: signals.New([]models.Categoria(nil)),
		Loading:    signals.New(false),
		Error:      signals.New(""),
	}
}

// LoadMenu fetches products and categories from the backend
func (s *ProductService) LoadMenu() {
	s.Loading.Set(true)
	s.Error.Set("")
	defer s.Loading.Set(false)

	productos, err := s.api.GetProductos()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load products")
		s.Error.Set("Error al obtener productos")
		s.toasts.Error("Error al obtener productos", "")
		return
	}
	s.Productos.Set(productos)

	categorias, err := s.api.GetCategorias()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load categories")
		s.Error.Set("Error al obtener categorías")
		s.toasts.Error("Error al obtener categorías", "")
		return
	}
	s.Categorias.Set(categorias)
}

// ProductosPorCategoria filters the cached menu by category
func (s *ProductService) ProductosPorCategoria(categoriaID int) []models.Product {
	var result []models.Product
	for _, p := range s.Productos.Get() {
		if p.CategoriaID == categoriaID {
			result = append(result, p)
		}
	}
	return result
}

// ProductoByID returns one cached product, or nil
func (s *ProductService) ProductoByID(productoID string) *models.Product {
	for _, p := range s.Productos.Get() {
		if p.ProductoID == productoID {
			found := p
			return &found
		}
	}
	return nil
}

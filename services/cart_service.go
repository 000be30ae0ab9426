package services

import (
	"github.com/rs/zerolog"

	"github.com/restofacil/mesa-client/models"
	"github.com/restofacil/mesa-client/signals"
	"github.com/restofacil/mesa-client/store"
	"github.com/restofacil/mesa-client/utils"
)

// CartService holds the cart being built in the Menu and Cart views
type CartService struct {
	store *store.Store
	log   zerolog.Logger

	Cart *signals.Signal[[]models.CartItem]
}

// NewCartService restores any persisted cart and installs the
// persistence hook.
func NewCartService(st *store.Store, log zerolog.Logger) *CartService {
	var stored []models.CartItem
	st.LoadJSON(store.KeyCart, &stored)

	s := &CartService{
		store: st,
		log:   log.With().Str("component", "cart").Logger(),
		Cart:  signals.New(stored),
	}

	s.Cart.Subscribe(func(cart []models.CartItem) {
		if len(cart) == 0 {
			if err := st.RemoveItem(store.KeyCart); err != nil {
				s.log.Warn().Err(err).Msg("failed to remove stored cart")
			}
			return
		}
		if err := st.SaveJSON(store.KeyCart, cart); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist cart")
		}
	})

	return s
}

// ItemCount returns the total quantity across all lines
func (s *CartService) ItemCount() int {
	count := 0
	for _, item := range s.Cart.Get() {
		count += item.Cantidad
	}
	return count
}

// TotalPrice returns the cart total before tax
func (s *CartService) TotalPrice() float64 {
	total := 0.0
	for _, item := range s.Cart.Get() {
		total += item.Subtotal()
	}
	return total
}

// AddToCart adds a product. Adding a product already in the cart merges
// the lines: quantities are summed and notes concatenated.
func (s *CartService) AddToCart(producto models.Product, cantidad int, notas string) {
	if cantidad < 1 {
		cantidad = 1
	}

	s.Cart.Update(func(cart []models.CartItem) []models.CartItem {
		for i, item := range cart {
			if item.Producto.ProductoID == producto.ProductoID {
				updated := make([]models.CartItem, len(cart))
				copy(updated, cart)
				updated[i].Cantidad += cantidad
				updated[i].Notas = utils.ConcatNotas(updated[i].Notas, notas)
				return updated
			}
		}
		return append(cart, models.CartItem{Producto: producto, Cantidad: cantidad, Notas: notas})
	})
}

// RemoveFromCart drops a product's line entirely
func (s *CartService) RemoveFromCart(productoID string) {
	s.Cart.Update(func(cart []models.CartItem) []models.CartItem {
		filtered := cart[:0:0]
		for _, item := range cart {
			if item.Producto.ProductoID != productoID {
				filtered = append(filtered, item)
			}
		}
		return filtered
	})
}

// ResetCart empties the cart, done after a successful checkout
func (s *CartService) ResetCart() {
	s.Cart.Set(nil)
}

// ToProductosPedido converts the cart into the create-order line items
func (s *CartService) ToProductosPedido() []models.ProductoPedido {
	cart := s.Cart.Get()
	productos := make([]models.ProductoPedido, 0, len(cart))
	for _, item := range cart {
		productos = append(productos, models.ProductoPedido{
			ProductoID:     item.Producto.ProductoID,
			Cantidad:       item.Cantidad,
			PrecioUnitario: item.Producto.PrecioUnitario,
		})
	}
	return productos
}

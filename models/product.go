package models

// Product represents a menu item
type Product struct {
	ProductoID     string     `json:"producto_id"`
	Nombre         string     `json:"nombre"`
	Descripcion    string     `json:"descripcion"`
	PrecioUnitario float64    `json:"precio_unitario"`
	ImagenURL      string     `json:"imagen_url,omitempty"`
	CategoriaID    int        `json:"categoria_id"`
	Categoria      *Categoria `json:"categoria,omitempty"`
	Stock          int        `json:"stock"`
}

// Categoria groups menu items
type Categoria struct {
	CategoriaID int    `json:"categoria_id"`
	Nombre      string `json:"nombre"`
	Emoji       string `json:"emoji"`
}

// CartItem is one product in the cart with quantity and free-text notes
type CartItem struct {
	Producto Product `json:"producto"`
	Cantidad int     `json:"cantidad"`
	Notas    string  `json:"notas,omitempty"`
}

// Subtotal returns price times quantity for this line
func (i CartItem) Subtotal() float64 {
	return i.Producto.PrecioUnitario * float64(i.Cantidad)
}

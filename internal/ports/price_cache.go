package ports

import (
	"context"

	"github.com/alejandrodnm/coeus/internal/domain"
)

// PriceCache guarda series ya descargadas para no repetir requests.
type PriceCache interface {
	// LoadPrices devuelve la serie si el rango [start, end] está cubierto
	// por una descarga anterior. ok=false si no está en caché.
	LoadPrices(ctx context.Context, symbol string, start, end domain.Date) (series domain.PriceSeries, ok bool, err error)

	// SavePrices guarda la serie descargada para el rango pedido.
	SavePrices(ctx context.Context, series domain.PriceSeries, start, end domain.Date) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

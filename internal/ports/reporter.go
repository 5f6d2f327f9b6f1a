package ports

import (
	"context"

	"github.com/alejandrodnm/coeus/internal/domain"
)

// Reporter presenta el resultado de un análisis al usuario.
type Reporter interface {
	// Report muestra el informe. En la implementación de consola imprime tablas.
	Report(ctx context.Context, report domain.Report) error
}

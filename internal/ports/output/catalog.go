package output

import "github.com/geoforge/basemap/internal/domain"

// ServerCatalog resolves tile server identifiers to their descriptors.
type ServerCatalog interface {
	// Get returns the descriptor for id, or domain.ErrUnsupportedServer
	// when the id is unknown.
	Get(id string) (domain.ServerDescriptor, error)

	// List returns all known descriptors ordered by id.
	List() []domain.ServerDescriptor
}

package domain

import (
	"fmt"
	"strings"
)

// TileScheme identifies how a server addresses its tiles.
type TileScheme string

// Supported tile addressing schemes.
const (
	SchemeXYZ     TileScheme = "xyz"     // {z}/{x}/{y} templates
	SchemeQuadkey TileScheme = "quadkey" // Bing-style {quadkey} templates
	SchemeWMS     TileScheme = "wms"     // delegated to an external WMS importer
)

// ServerDescriptor is a read-only catalog entry describing one tile or
// WMS server.
type ServerDescriptor struct {
	ID          string      `yaml:"id"`
	DisplayName string      `yaml:"name"`
	URLTemplate string      `yaml:"url"`
	Scheme      TileScheme  `yaml:"scheme"`
	MaxZoom     int         `yaml:"max_zoom"`
	Format      ImageFormat `yaml:"format"`
}

// Validate checks a catalog entry for internal consistency.
func (s ServerDescriptor) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "id", Value: s.ID, Constraint: "non-empty", Message: "server id is required"}
	}
	if s.URLTemplate == "" {
		return &ValidationError{Field: "url", Value: s.URLTemplate, Constraint: "non-empty", Message: "url template is required"}
	}
	switch s.Scheme {
	case SchemeXYZ:
		if !strings.Contains(s.URLTemplate, "{x}") || !strings.Contains(s.URLTemplate, "{z}") {
			return &ValidationError{Field: "url", Value: s.URLTemplate, Constraint: "{z},{x},{y}", Message: "xyz template must contain {z}, {x} and {y} placeholders"}
		}
	case SchemeQuadkey:
		if !strings.Contains(s.URLTemplate, "{quadkey}") {
			return &ValidationError{Field: "url", Value: s.URLTemplate, Constraint: "{quadkey}", Message: "quadkey template must contain a {quadkey} placeholder"}
		}
	case SchemeWMS:
		// WMS URLs are opaque to this service.
	default:
		return &ValidationError{Field: "scheme", Value: string(s.Scheme), Constraint: "xyz|quadkey|wms", Message: "unknown tile scheme"}
	}
	if s.MaxZoom < 0 || s.MaxZoom > 23 {
		return &ValidationError{Field: "max_zoom", Value: s.MaxZoom, Constraint: "[0, 23]", Message: "max zoom out of range"}
	}
	return nil
}

// CustomServer wraps a user-supplied URL template in a descriptor.
// Custom templates are assumed to be XYZ unless they carry a quadkey
// placeholder.
func CustomServer(urlTemplate string, format ImageFormat) ServerDescriptor {
	scheme := SchemeXYZ
	if strings.Contains(urlTemplate, "{quadkey}") {
		scheme = SchemeQuadkey
	}
	return ServerDescriptor{
		ID:          "custom",
		DisplayName: "Custom",
		URLTemplate: urlTemplate,
		Scheme:      scheme,
		MaxZoom:     20,
		Format:      format,
	}
}

// ResolveSubdomain substitutes the optional {s} shard placeholder.
// Tile grids with subdomain sharding rotate requests across shards to
// dodge per-host rate limits.
func ResolveSubdomain(urlTemplate, shard string) string {
	return strings.ReplaceAll(urlTemplate, "{s}", shard)
}

// String implements fmt.Stringer for log output.
func (s ServerDescriptor) String() string {
	return fmt.Sprintf("%s (%s, %s, max zoom %d)", s.ID, s.DisplayName, s.Scheme, s.MaxZoom)
}

// Package catalog resolves tile server identifiers against a built-in
// inventory, optionally extended by a user-supplied YAML file.
package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/geoforge/basemap/internal/domain"
)

//go:embed servers.yaml
var builtinYAML []byte

type catalogFile struct {
	Servers []domain.ServerDescriptor `yaml:"servers"`
}

// Catalog implements output.ServerCatalog. It is safe for concurrent
// readers while Reload swaps the inventory.
type Catalog struct {
	mu      sync.RWMutex
	servers map[string]domain.ServerDescriptor

	path   string // user catalog file, empty for built-in only
	logger *slog.Logger
}

// New loads the built-in inventory and, when path is non-empty, merges
// the user catalog file on top. Entries with the same id override the
// built-in ones.
func New(path string, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{
		path:   path,
		logger: logger.With("component", "server_catalog"),
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the user catalog file and rebuilds the inventory.
// On parse failure the previous inventory stays in place.
func (c *Catalog) Reload() error {
	servers, err := parse(builtinYAML, "built-in catalog")
	if err != nil {
		return err
	}

	if c.path != "" {
		data, err := os.ReadFile(c.path)
		if err != nil {
			return fmt.Errorf("reading server catalog %s: %w", c.path, err)
		}
		user, err := parse(data, c.path)
		if err != nil {
			return err
		}
		for id, s := range user {
			servers[id] = s
		}
	}

	c.mu.Lock()
	c.servers = servers
	c.mu.Unlock()

	c.logger.Info("server catalog loaded", "servers", len(servers), "user_file", c.path != "")
	return nil
}

// Get implements output.ServerCatalog.
func (c *Catalog) Get(id string) (domain.ServerDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.servers[id]
	if !ok {
		return domain.ServerDescriptor{}, domain.ErrUnsupportedServer
	}
	return s, nil
}

// List implements output.ServerCatalog.
func (c *Catalog) List() []domain.ServerDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ServerDescriptor, 0, len(c.servers))
	for _, s := range c.servers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Path returns the user catalog file being watched, if any.
func (c *Catalog) Path() string { return c.path }

func parse(data []byte, source string) (map[string]domain.ServerDescriptor, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}

	servers := make(map[string]domain.ServerDescriptor, len(file.Servers))
	for _, s := range file.Servers {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%s: server %q: %w", source, s.ID, err)
		}
		if _, dup := servers[s.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate server id %q", source, s.ID)
		}
		servers[s.ID] = s
	}
	return servers, nil
}

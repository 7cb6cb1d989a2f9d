// Package registry bundles the in-memory lookup tables and backing stores
// the HTTP handlers share, so both the router and the handler package can
// depend on it without an import cycle between them.
package registry

import (
	"github.com/google/uuid"

	"github.com/evacsim/evacuation-core/internal/bimjson"
	"github.com/evacsim/evacuation-core/internal/cache"
	"github.com/evacsim/evacuation-core/internal/config"
	"github.com/evacsim/evacuation-core/internal/run"
	"github.com/evacsim/evacuation-core/internal/service/storage"
	"github.com/evacsim/evacuation-core/internal/store"
)

// BuildingRecord is a previously submitted BIM document, kept around so a
// run can rebuild a fresh, unmutated Building from it on demand instead of
// deep-copying solver state.
type BuildingRecord struct {
	ID         uuid.UUID
	Name       string
	Doc        *bimjson.Building
	Population float64
	ZoneCount  int
}

// Registry bundles the in-memory registries and backing stores the HTTP
// handlers depend on, mirroring the source's pattern of passing a shared
// config map into its route setup functions.
type Registry struct {
	Config    config.Config
	Buildings *storage.MemoryStorage[uuid.UUID, *BuildingRecord]
	Runs      *storage.MemoryStorage[uuid.UUID, *run.Record]
	Store     *store.Store
	Cache     *cache.Cache
}

// New builds an empty Registry bound to the given config, store and cache
// (either of which may be nil in a degraded/offline configuration).
func New(cfg config.Config, st *store.Store, ch *cache.Cache) *Registry {
	return &Registry{
		Config:    cfg,
		Buildings: storage.NewMemoryStorage[uuid.UUID, *BuildingRecord](),
		Runs:      storage.NewMemoryStorage[uuid.UUID, *run.Record](),
		Store:     st,
		Cache:     ch,
	}
}

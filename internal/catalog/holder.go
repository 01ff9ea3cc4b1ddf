package catalog

import (
	"sync/atomic"

	"github.com/leandeep/marker-engine/internal/marker"
)

// Holder publishes the active catalog to all sessions. Reload swaps the
// snapshot atomically; readers either see the old catalog or the new
// one, never a partial state.
type Holder struct {
	cur atomic.Pointer[Catalog]
}

// NewHolder creates a holder with an initial catalog.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.cur.Store(c)
	return h
}

// Current returns the active catalog snapshot.
func (h *Holder) Current() *Catalog {
	return h.cur.Load()
}

// Reload validates definitions and, on success, atomically installs the
// new catalog. On failure the previous catalog stays active and the
// validation errors are returned.
func (h *Holder) Reload(defs []marker.Definition) (*Catalog, error) {
	c, err := Load(defs)
	if err != nil {
		return nil, err
	}
	h.cur.Store(c)
	return c, nil
}

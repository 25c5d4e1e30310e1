// Package modules provides the built-in sync modules: each one refreshes
// a derived slice of the identity document and reports what it touched.
package modules

// #region imports
import (
	"github.com/danielpatrickdp/identity-engine/internal/embedding"
	"github.com/danielpatrickdp/identity-engine/internal/orchestrator"
	"github.com/danielpatrickdp/identity-engine/internal/state"
)

// #endregion

// #region register-all

// RegisterAll wires the full built-in module set into the registry.
func RegisterAll(reg *orchestrator.Registry, store *state.Store, refresher *embedding.Refresher) error {
	all := []orchestrator.Module{
		NewBio(refresher),
		NewCareer(store),
		NewDating(store),
		NewAesthetic(store),
		NewPhoto(store),
	}
	for _, m := range all {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// #endregion

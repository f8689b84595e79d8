package api

import (
	"sync"

	"github.com/Skryldev/product-catalog/telemetry"
)

// Readiness records whether the products table is known to exist. Product
// routes answer 503 until it is set.
type Readiness struct {
	mu     sync.RWMutex
	ready  bool
	reason string
}

// NewReadiness returns a Readiness in the not-ready state.
func NewReadiness() *Readiness {
	return &Readiness{reason: "schema not initialised"}
}

// Set records the outcome of a schema initialisation attempt.
func (r *Readiness) Set(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.ready, r.reason = true, ""
		telemetry.SchemaReady.Set(1)
		return
	}
	r.ready, r.reason = false, err.Error()
	telemetry.SchemaReady.Set(0)
}

// Ready reports the current state and, when not ready, why.
func (r *Readiness) Ready() (bool, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready, r.reason
}

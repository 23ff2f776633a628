package main

import (
	"sync"

	"github.com/lightningnetwork/lnd/kvdb"
)

// ModuleInstanceID selects which registered module owns a given input,
// output, or key-prefix at runtime.
type ModuleInstanceID uint16

// VerificationCache is an opaque, module-defined scratch value built once
// per transaction and threaded through every validate_input call for that
// transaction, letting a module amortize work shared across its inputs
// (e.g. a single signature-batch context).
type VerificationCache interface{}

// InputOutcome is what a module returns after successfully validating one
// input: the amount it claims to consume and the public keys a caller must
// verify the transaction's signatures against.
type InputOutcome struct {
	Amount  int64
	PubKeys [][]byte
}

// OutputOutcome describes the result of validating one output.
type OutputOutcome struct {
	Amount int64
}

// Module is the capability-set abstraction every pluggable subsystem
// (mint, wallet, lightning, ...) implements. Module database access is
// always routed through a prefixedRTx scoped to this module's instance id,
// so a module can never read or write another module's state.
type Module interface {
	// BuildVerificationCache lets a module precompute shared state once
	// per transaction from the full list of inputs it owns within it.
	BuildVerificationCache(inputs []Input) VerificationCache

	// ValidateInput checks one input against the scoped snapshot and the
	// per-transaction cache built above.
	ValidateInput(tx kvdb.RTx, cache VerificationCache, input Input) (*InputOutcome, error)

	// ValidateOutput checks one output against the scoped snapshot.
	ValidateOutput(tx kvdb.RTx, output Output) (*OutputOutcome, error)

	// OutputStatus reports the outcome of a previously accepted output.
	// An accepted transaction's outputs must always resolve here; a
	// failure at this stage is an invariant violation, not a normal
	// error.
	OutputStatus(tx kvdb.RTx, out OutPoint) (interface{}, error)
}

// ModuleRegistry is a single-writer, many-reader map from instance id to
// its Module implementation, following the teacher's chainRegistry idiom
// of an RWMutex-guarded map with simple Register/Lookup accessors.
type ModuleRegistry struct {
	sync.RWMutex

	modules map[ModuleInstanceID]Module
}

// NewModuleRegistry returns an empty registry ready for RegisterModule
// calls made during startup.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{
		modules: make(map[ModuleInstanceID]Module),
	}
}

// RegisterModule assigns a Module implementation to a module-instance-id.
func (r *ModuleRegistry) RegisterModule(id ModuleInstanceID, m Module) {
	r.Lock()
	defer r.Unlock()

	r.modules[id] = m
}

// LookupModule attempts to find the module registered for id.
func (r *ModuleRegistry) LookupModule(id ModuleInstanceID) (Module, bool) {
	r.RLock()
	defer r.RUnlock()

	m, ok := r.modules[id]
	return m, ok
}

// NumModules returns the number of currently registered modules.
func (r *ModuleRegistry) NumModules() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.modules)
}

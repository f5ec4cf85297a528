// Package wasmpred evaluates admission predicates supplied as WebAssembly
// modules. A guest exports "allocate" and "match"; the host writes the
// admission request as JSON into guest memory, calls match, and reads back a
// packed ptr/len pointing at a JSON verdict. This keeps the predicate
// language opaque: anything that compiles to WASM can decide denial.
package wasmpred

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/breakglass-dev/breakglass/domain/entities"
)

// Engine owns the wazero runtime shared by all loaded predicates.
type Engine struct {
	runtime wazero.Runtime
}

// NewEngine creates a runtime with WASI support, since most toolchains
// assume it.
func NewEngine(ctx context.Context) (*Engine, error) {
	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	return &Engine{runtime: rt}, nil
}

// Close releases the runtime and every module instantiated from it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Predicate is an instantiated guest module. Guest calls are serialized: a
// module instance is not safe for concurrent invocation.
type Predicate struct {
	mu     sync.Mutex
	module api.Module
}

var _ entities.Predicate = (*Predicate)(nil)

// Load instantiates a predicate module from raw WASM bytes and verifies the
// required exports.
func (e *Engine) Load(ctx context.Context, wasmBytes []byte) (*Predicate, error) {
	mod, err := e.runtime.Instantiate(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate predicate module: %w", err)
	}
	for _, export := range []string{"allocate", "match"} {
		if mod.ExportedFunction(export) == nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("predicate module does not export %q", export)
		}
	}
	return &Predicate{module: mod}, nil
}

// LoadFile reads and instantiates the module at path.
func (e *Engine) LoadFile(ctx context.Context, path string) (*Predicate, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read predicate module %s: %w", path, err)
	}
	return e.Load(ctx, wasmBytes)
}

// verdict is the JSON document the guest returns from match.
type verdict struct {
	Matched bool   `json:"matched"`
	Error   string `json:"error,omitempty"`
}

// Matches implements entities.Predicate.
func (p *Predicate) Matches(ctx context.Context, req *entities.AdmissionRequest) (bool, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return false, fmt.Errorf("failed to marshal request for guest: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	allocate := p.module.ExportedFunction("allocate")
	results, err := allocate.Call(ctx, uint64(len(input)))
	if err != nil {
		return false, fmt.Errorf("guest allocate failed: %w", err)
	}
	if len(results) == 0 {
		return false, fmt.Errorf("guest allocate returned no results")
	}
	ptr := uint32(results[0])
	if !p.module.Memory().Write(ptr, input) {
		return false, fmt.Errorf("failed to write request into guest memory")
	}

	results, err = p.module.ExportedFunction("match").Call(ctx, uint64(ptr), uint64(len(input)))
	if err != nil {
		return false, fmt.Errorf("guest match failed: %w", err)
	}
	if len(results) == 0 {
		return false, fmt.Errorf("guest match returned no results")
	}

	packed := results[0]
	respPtr := uint32(packed >> 32)
	respLen := uint32(packed)
	if respPtr == 0 || respLen == 0 {
		return false, fmt.Errorf("null verdict from guest")
	}
	data, ok := p.module.Memory().Read(respPtr, respLen)
	if !ok {
		return false, fmt.Errorf("failed to read verdict from guest memory")
	}

	var v verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return false, fmt.Errorf("malformed verdict from guest: %w", err)
	}
	if v.Error != "" {
		return false, fmt.Errorf("guest reported error: %s", v.Error)
	}
	return v.Matched, nil
}

// Close releases the guest module.
func (p *Predicate) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.module.Close(ctx)
}

// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through the hooks registered here; nothing in this
// package depends on a specific backend. The defaults are no-ops, so emitting
// an event costs a mutex read and an interface call.
//
// # Usage
//
// Register hooks once at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnPhaseStart(ctx, "Superstore", observability.PhaseClosure)
//	// ... compute closure ...
//	observability.Pipeline().OnPhaseComplete(ctx, "Superstore", observability.PhaseClosure, time.Since(start), nil)
package observability

import (
	"context"
	"sync"
	"time"
)

// Phase names a stage of workbook analysis.
type Phase string

const (
	PhaseLoad    Phase = "load"    // read and decode the workbook
	PhaseBuild   Phase = "build"   // registry and dependency graph
	PhaseClosure Phase = "closure" // levels, forward/backward sets, cycles
	PhaseReport  Phase = "report"  // dependency rows and field summaries
	PhaseRender  Phase = "render"  // diagram rendering
	PhaseWrite   Phase = "write"   // spreadsheet, JSON and diagram files
)

// Phases lists the analysis phases in execution order.
var Phases = []Phase{PhaseLoad, PhaseBuild, PhaseClosure, PhaseReport, PhaseRender, PhaseWrite}

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the analysis pipeline. Implementations
// are called synchronously from pipeline goroutines and must not block.
type PipelineHooks interface {
	OnPhaseStart(ctx context.Context, workbook string, phase Phase)
	OnPhaseComplete(ctx context.Context, workbook string, phase Phase, duration time.Duration, err error)

	// OnDiagnostic is called once per recoverable problem found in a workbook.
	OnDiagnostic(ctx context.Context, workbook, kind string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP service. route is the matched
// route pattern, not the raw path, so job ids do not explode cardinality.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, route string)
	OnResponse(ctx context.Context, method, route string, statusCode int, duration time.Duration)
	OnError(ctx context.Context, method, route string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnPhaseStart(context.Context, string, Phase) {}
func (NoopPipelineHooks) OnPhaseComplete(context.Context, string, Phase, time.Duration, error) {
}
func (NoopPipelineHooks) OnDiagnostic(context.Context, string, string) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks. Nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}

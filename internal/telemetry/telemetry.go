// Package telemetry counts app events in memory. Recording is opt-in
// and off by default, and the package has no network client: nothing
// recorded here can leave the device. Field values are filtered
// through a closed allowlist so product names, barcodes, and dietary
// restriction details are never retained even after opt-in.
package telemetry

import (
	"sync"
)

// Event names the app records: scans at the store change callback,
// sync passes at the engine, exports at the report service.
const (
	EventScanRecorded    = "scan_recorded"
	EventSyncCompleted   = "sync_completed"
	EventExportCompleted = "export_completed"
)

// allowedFields is the closed set of field keys Record keeps. Keys
// naming what was scanned are deliberately absent.
var allowedFields = map[string]bool{
	"count":       true,
	"items":       true,
	"duration_ms": true,
	"status":      true,
	"encrypted":   true,
}

// Recorder accumulates opt-in event counts.
type Recorder struct {
	mu      sync.Mutex
	enabled bool
	counts  map[string]int64
	last    map[string]map[string]interface{}
}

// NewRecorder returns a disabled recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		counts: map[string]int64{},
		last:   map[string]map[string]interface{}{},
	}
}

var (
	defaultRecorder *Recorder
	defaultOnce     sync.Once
)

// Get returns the process-wide recorder.
func Get() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewRecorder()
	})
	return defaultRecorder
}

// Enable turns recording on. Until called, Record drops everything.
func (r *Recorder) Enable() {
	r.mu.Lock()
	r.enabled = true
	r.mu.Unlock()
}

// Disable turns recording off and clears what was collected.
func (r *Recorder) Disable() {
	r.mu.Lock()
	r.enabled = false
	r.counts = map[string]int64{}
	r.last = map[string]map[string]interface{}{}
	r.mu.Unlock()
}

// Enabled reports the opt-in state.
func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Record counts one event. Fields outside the allowlist are dropped
// before anything is stored.
func (r *Recorder) Record(event string, fields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	r.counts[event]++

	kept := map[string]interface{}{}
	for key, value := range fields {
		if allowedFields[key] {
			kept[key] = value
		}
	}
	r.last[event] = kept
}

// Counts returns a copy of the per-event totals.
func (r *Recorder) Counts() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.counts))
	for event, n := range r.counts {
		out[event] = n
	}
	return out
}

// Last returns the filtered fields of the most recent occurrence of
// an event, for the settings screen's "what gets collected" view.
func (r *Recorder) Last(event string) map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	fields, ok := r.last[event]
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		out[key] = value
	}
	return out
}

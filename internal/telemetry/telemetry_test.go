package telemetry

import "testing"

func TestRecorder_disabledByDefault(t *testing.T) {
	r := NewRecorder()
	if r.Enabled() {
		t.Error("new recorder should be disabled")
	}

	r.Record(EventScanRecorded, map[string]interface{}{"count": 1})
	if len(r.Counts()) != 0 {
		t.Errorf("counts = %v, want empty while disabled", r.Counts())
	}
}

func TestRecorder_countsAfterOptIn(t *testing.T) {
	r := NewRecorder()
	r.Enable()

	r.Record(EventScanRecorded, nil)
	r.Record(EventScanRecorded, nil)
	r.Record(EventSyncCompleted, map[string]interface{}{"items": 5})

	counts := r.Counts()
	if counts[EventScanRecorded] != 2 {
		t.Errorf("scan_recorded = %d, want 2", counts[EventScanRecorded])
	}
	if counts[EventSyncCompleted] != 1 {
		t.Errorf("sync_completed = %d, want 1", counts[EventSyncCompleted])
	}
}

func TestRecorder_filtersDisallowedFields(t *testing.T) {
	r := NewRecorder()
	r.Enable()

	r.Record(EventScanRecorded, map[string]interface{}{
		"count":        1,
		"product_name": "Almond Bar",
		"barcode":      "0123456789012",
		"restriction":  "tree nuts",
	})

	fields := r.Last(EventScanRecorded)
	if fields["count"] != 1 {
		t.Errorf("count = %v, want 1", fields["count"])
	}
	for _, forbidden := range []string{"product_name", "barcode", "restriction"} {
		if _, ok := fields[forbidden]; ok {
			t.Errorf("field %q survived filtering", forbidden)
		}
	}
}

func TestRecorder_disableClearsState(t *testing.T) {
	r := NewRecorder()
	r.Enable()
	r.Record(EventExportCompleted, map[string]interface{}{"encrypted": true})

	r.Disable()
	if r.Enabled() {
		t.Error("Enabled() = true after Disable")
	}
	if len(r.Counts()) != 0 {
		t.Errorf("counts = %v, want empty after Disable", r.Counts())
	}
	if r.Last(EventExportCompleted) != nil {
		t.Error("Last() retained fields after Disable")
	}
}

func TestGet_returnsSameRecorder(t *testing.T) {
	if Get() != Get() {
		t.Error("Get() returned different recorders")
	}
}

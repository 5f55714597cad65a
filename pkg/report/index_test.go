package report

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestIndex() *Index {
	return &Index{
		Version: Version,
		Status:  StatusPending,
		Flows: []FlowEntry{
			{ID: "flow-000", Status: StatusPending},
			{ID: "flow-001", Status: StatusPending},
		},
	}
}

func TestIndexWriter_TerminalUpdateFlushesImmediately(t *testing.T) {
	tmpDir := t.TempDir()
	w := NewIndexWriter(tmpDir, newTestIndex())
	defer w.Close()

	w.Start()
	w.UpdateFlow("flow-000", &FlowUpdate{Status: StatusPassed})

	onDisk, err := ReadIndex(filepath.Join(tmpDir, "report.json"))
	if err != nil {
		t.Fatalf("ReadIndex() error = %v", err)
	}
	if onDisk.Flows[0].Status != StatusPassed {
		t.Errorf("Flows[0].Status = %q, want %q", onDisk.Flows[0].Status, StatusPassed)
	}
	if onDisk.Summary.Passed != 1 || onDisk.Summary.Pending != 1 {
		t.Errorf("Summary = %+v, want 1 passed and 1 pending", onDisk.Summary)
	}
}

func TestIndexWriter_ProgressIsDebounced(t *testing.T) {
	tmpDir := t.TempDir()
	w := NewIndexWriter(tmpDir, newTestIndex())
	defer w.Close()

	w.Start()
	w.UpdateFlow("flow-000", &FlowUpdate{Status: StatusRunning})

	if got := w.GetIndex().Flows[0].Status; got != StatusPending {
		t.Errorf("status applied before debounce: %q", got)
	}

	time.Sleep(3 * progressDebounce)

	if got := w.GetIndex().Flows[0].Status; got != StatusRunning {
		t.Errorf("Flows[0].Status = %q, want %q", got, StatusRunning)
	}
}

func TestIndexWriter_End(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all passed", []Status{StatusPassed, StatusPassed}, StatusPassed},
		{"one failed", []Status{StatusPassed, StatusFailed}, StatusFailed},
		{"incomplete", []Status{StatusPassed, StatusRunning}, StatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewIndexWriter(t.TempDir(), newTestIndex())
			defer w.Close()

			w.Start()
			for i, s := range tt.statuses {
				w.UpdateFlow(w.GetIndex().Flows[i].ID, &FlowUpdate{Status: s})
			}
			w.End()

			idx := w.GetIndex()
			if idx.Status != tt.want {
				t.Errorf("Status = %q, want %q", idx.Status, tt.want)
			}
			if idx.EndTime == nil {
				t.Error("EndTime not set")
			}
		})
	}
}

func TestIndexWriter_ConcurrentUpdates(t *testing.T) {
	index := &Index{Version: Version}
	for i := 0; i < 20; i++ {
		index.Flows = append(index.Flows, FlowEntry{ID: "flow-" + string(rune('a'+i)), Status: StatusPending})
	}
	w := NewIndexWriter(t.TempDir(), index)
	defer w.Close()

	w.Start()
	var wg sync.WaitGroup
	for i := range index.Flows {
		id := index.Flows[i].ID
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.UpdateFlow(id, &FlowUpdate{Status: StatusRunning})
			w.UpdateFlow(id, &FlowUpdate{Status: StatusPassed})
		}()
	}
	wg.Wait()
	w.End()

	idx := w.GetIndex()
	if idx.Summary.Passed != 20 {
		t.Errorf("Summary.Passed = %d, want 20", idx.Summary.Passed)
	}
	if idx.Status != StatusPassed {
		t.Errorf("Status = %q, want %q", idx.Status, StatusPassed)
	}
}

package telemetry

import (
	"fmt"
	"strings"
	"sync"
)

// Report is a single report captured by TestAPI.
type Report struct {
	ID     string
	Params []any
}

// TestAPI implements API by recording every report, it is meant to be
// used in tests to assert on what a component reported.
type TestAPI struct {
	mu       sync.Mutex
	broken   []Report
	warnings []Report
	debug    []Report
	counts   map[string]int64
}

func NewTestAPI() *TestAPI {
	return &TestAPI{counts: map[string]int64{}}
}

func (t *TestAPI) ReportBroken(id string, params ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broken = append(t.broken, Report{ID: id, Params: params})
}

func (t *TestAPI) ReportWarning(id string, params ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings = append(t.warnings, Report{ID: id, Params: params})
}

func (t *TestAPI) ReportDebug(msg string, params ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.debug = append(t.debug, Report{ID: msg, Params: params})
}

func (t *TestAPI) ReportCount(id string, count int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[id] = count
}

// Broken returns every ReportBroken call whose id contains `substr`.
func (t *TestAPI) Broken(substr string) []Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return filterReports(t.broken, substr)
}

// Warnings returns every ReportWarning call whose id contains `substr`.
func (t *TestAPI) Warnings(substr string) []Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return filterReports(t.warnings, substr)
}

// Count returns the last count reported under an id that ends with `suffix`.
func (t *TestAPI) Count(suffix string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, n := range t.counts {
		if strings.HasSuffix(id, suffix) {
			return n, true
		}
	}
	return 0, false
}

func (t *TestAPI) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("broken=%v warnings=%v", t.broken, t.warnings)
}

func filterReports(reports []Report, substr string) []Report {
	var out []Report
	for _, r := range reports {
		if strings.Contains(r.ID, substr) {
			out = append(out, r)
		}
	}
	return out
}

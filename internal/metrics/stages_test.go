// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStagesRecordOutcome(t *testing.T) {
	t.Parallel()

	s := NewStages()
	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	done := s.Start("test")
	clock = clock.Add(1500 * time.Millisecond)
	done(nil)

	failed := s.Start("publish")
	failed(errors.New("boom"))

	if got := testutil.ToFloat64(s.duration.WithLabelValues("test")); got != 1.5 {
		t.Errorf("test duration = %v, want 1.5", got)
	}
	if got := testutil.ToFloat64(s.success.WithLabelValues("test")); got != 1 {
		t.Errorf("test success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.success.WithLabelValues("publish")); got != 0 {
		t.Errorf("publish success = %v, want 0", got)
	}
	if got := testutil.ToFloat64(s.runs.WithLabelValues("publish", "failure")); got != 1 {
		t.Errorf("publish failures = %v, want 1", got)
	}
}

func TestNilStages(t *testing.T) {
	t.Parallel()

	var s *Stages
	s.Start("prepare")(nil)
	if err := s.WriteFile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Errorf("WriteFile() on nil Stages error = %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	s := NewStages()
	s.Start("lint")(nil)

	path := filepath.Join(t.TempDir(), "tankerci.prom")
	if err := s.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`tankerci_stage_success{stage="lint"} 1`,
		`tankerci_stage_runs_total{outcome="success",stage="lint"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics file lacks %q:\n%s", want, data)
		}
	}
}

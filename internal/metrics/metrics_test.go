package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	panelerrors "github.com/hearth-panel/hearth-ctl/internal/errors"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "success"},
		{"validation", panelerrors.NewValidationError(), "validation"},
		{"daemon", &panelerrors.DaemonConnectionError{Node: "n"}, "daemon_connection"},
		{"exhausted", panelerrors.AutoAllocationNotEnabled(), "resource_exhausted"},
		{"plain", errors.New("x"), "general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.err); got != tt.want {
				t.Errorf("Outcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordCreation(t *testing.T) {
	before := promtest.ToFloat64(ServerCreations.WithLabelValues("conflict"))
	RecordCreation(panelerrors.Conflict("taken"))
	after := promtest.ToFloat64(ServerCreations.WithLabelValues("conflict"))

	if after-before != 1 {
		t.Errorf("conflict creations increased by %v, want 1", after-before)
	}
}

func TestRecordReservation(t *testing.T) {
	before := promtest.ToFloat64(AllocationReservations.WithLabelValues("conflict"))
	RecordReservation(false)
	RecordReservation(true)
	if got := promtest.ToFloat64(AllocationReservations.WithLabelValues("conflict")) - before; got != 1 {
		t.Errorf("conflicts increased by %v, want 1", got)
	}
}

func TestRecordDaemonCall(t *testing.T) {
	RecordDaemonCall("create", time.Now(), nil)
	if n := promtest.CollectAndCount(DaemonCalls); n == 0 {
		t.Error("DaemonCalls has no series after a recorded call")
	}
}

func TestRegisterWith(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := RegisterWith(reg); err != nil {
		t.Fatalf("RegisterWith failed: %v", err)
	}
	if err := RegisterWith(reg); err == nil {
		t.Error("registering twice on one registry should fail")
	}

	Register()
	Register()
}

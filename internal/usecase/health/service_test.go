package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err   error
	calls int
}

func (m *mockPinger) Ping(_ context.Context) error {
	m.calls++
	return m.err
}

// --- Tests ---

func TestCheck(t *testing.T) {
	down := errors.New("connection refused")
	tests := []struct {
		name       string
		indexErr   error
		recordsErr error
		want       Status
	}{
		{"all healthy", nil, nil, Healthy},
		{"index down", down, nil, Degraded},
		{"records down", nil, down, Degraded},
		{"everything down", down, down, Unhealthy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			index := &mockPinger{err: tc.indexErr}
			records := &mockPinger{err: tc.recordsErr}

			r := New(index, records).Check(context.Background())
			if r.Status != tc.want {
				t.Errorf("status = %q, want %q", r.Status, tc.want)
			}
			if index.calls != 1 || records.calls != 1 {
				t.Errorf("expected one ping each, got %d/%d", index.calls, records.calls)
			}
			wantIndex := CheckOK
			if tc.indexErr != nil {
				wantIndex = CheckError
			}
			if r.Checks[ComponentSearchIndex] != wantIndex {
				t.Errorf("search_index = %q, want %q", r.Checks[ComponentSearchIndex], wantIndex)
			}
		})
	}
}

func TestCheck_NilComponentFails(t *testing.T) {
	r := New(&mockPinger{}, nil).Check(context.Background())
	if r.Status != Degraded || r.Checks[ComponentRecords] != CheckError {
		t.Errorf("unexpected report: %+v", r)
	}
}

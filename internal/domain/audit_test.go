package domain

import "testing"

func TestMarshalState(t *testing.T) {
	if MarshalState(nil) != nil {
		t.Fatal("expected nil state for nil input")
	}

	state := MarshalState(struct {
		Balance string `json:"balance"`
		Version int64  `json:"version"`
	}{Balance: "10.000000", Version: 3})

	if state["balance"] != "10.000000" {
		t.Fatalf("expected balance field, got %v", state)
	}

	if state["version"] != float64(3) {
		t.Fatalf("expected numeric version, got %v", state["version"])
	}

	bad := MarshalState(make(chan int))
	if bad["error"] == nil {
		t.Fatalf("expected error marker for unmarshalable value, got %v", bad)
	}
}

func TestAuditStatusFor(t *testing.T) {
	cases := map[TransactionStatus]AuditStatus{
		TransactionStatusSuccess: AuditStatusSuccess,
		TransactionStatusFlagged: AuditStatusFlagged,
		TransactionStatusFailed:  AuditStatusFailure,
	}
	for in, want := range cases {
		if got := AuditStatusFor(in); got != want {
			t.Errorf("AuditStatusFor(%s) = %s, want %s", in, got, want)
		}
	}
}

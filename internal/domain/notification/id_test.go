package notification

import "testing"

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b ID
		want int
	}{
		{"1", "1", 0},
		{"2", "10", -1},
		{"10", "9", 1},
		{"", "1", -1},
		{"1", "", 1},
		{"", "", 0},
		{"abc", "abd", -1},
		{"zz", "aaa", -1},
	}
	for _, tt := range tests {
		if got := CompareIDs(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareIDs(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMaxID(t *testing.T) {
	if got := MaxID("3", "12", "", "7"); got != "12" {
		t.Errorf("MaxID = %q, want 12", got)
	}
	if got := MaxID(); got != "" {
		t.Errorf("MaxID() = %q, want empty", got)
	}
}

func TestIDSeq(t *testing.T) {
	if n, ok := FormatID(42).Seq(); !ok || n != 42 {
		t.Errorf("FormatID(42).Seq() = %d, %v", n, ok)
	}
	for _, id := range []ID{"", "-1", "alert_1", "shipment_UPS1_1700000000000", "1.5"} {
		if id.IsServerAssigned() {
			t.Errorf("%q reported as server assigned", id)
		}
	}
}

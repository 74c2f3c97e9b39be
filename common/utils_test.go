package common

import "testing"

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "", "c", "d"); got != "c" {
		t.Errorf("Coalesce() = %q, want %q", got, "c")
	}
	if got := Coalesce(0, 0); got != 0 {
		t.Errorf("Coalesce() = %d, want 0", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi float32
		want      float32
	}{
		{"inside", 0.5, 0, 1, 0.5},
		{"below", -2, -1, 1, -1},
		{"above", 3, -1, 1, 1},
		{"at bound", 1, -1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
				t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

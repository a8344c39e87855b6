package command

import (
	"errors"
	"testing"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
		prec int
	}{
		{"30", "30", 0},
		{"20.0", "20.0", 1},
		{"0.531", "0.531", 3},
		{" 8.2 ", "8.2", 1},
		{"-133", "-133", 0},
		{"1e3", "1000.0", -1},
		{"2.5E-1", "0.25", -1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseValue(tt.in)
			if err != nil {
				t.Fatalf("ParseValue(%q) error: %v", tt.in, err)
			}
			if got := v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if v.Precision() != tt.prec {
				t.Errorf("Precision() = %d, want %d", v.Precision(), tt.prec)
			}
		})
	}
}

func TestParseValueInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "NaN", "Inf", "-inf", "1,5"} {
		if _, err := ParseValue(in); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("ParseValue(%q) error = %v, want ErrInvalidValue", in, err)
		}
	}
}

func TestValueConstructors(t *testing.T) {
	if got := Int(30).String(); got != "30" {
		t.Errorf("Int(30) = %q", got)
	}
	if got := Float(0.531).String(); got != "0.531" {
		t.Errorf("Float(0.531) = %q", got)
	}
	if got := Float(150).String(); got != "150.0" {
		t.Errorf("Float(150) = %q, want 150.0", got)
	}
	if got := Float(-133).String(); got != "-133.0" {
		t.Errorf("Float(-133) = %q, want -133.0", got)
	}
	if got := Fixed(20, 1).String(); got != "20.0" {
		t.Errorf("Fixed(20, 1) = %q", got)
	}
	if got := Fixed(3.14159, -2).String(); got != "3" {
		t.Errorf("Fixed(3.14159, -2) = %q", got)
	}
}

func TestValueRebase(t *testing.T) {
	// Bound needs more decimals than the request carries.
	if got := Int(0).rebase(0.01, 0).String(); got != "0.01" {
		t.Errorf("rebase widened = %q, want 0.01", got)
	}
	// Caller precision is kept when the bound fits.
	if got := Fixed(130.0, 1).rebase(125, 0).String(); got != "125.0" {
		t.Errorf("rebase kept = %q, want 125.0", got)
	}
	if got := Float(1e9).rebase(280, 0).String(); got != "280.0" {
		t.Errorf("rebase shortest = %q, want 280.0", got)
	}
	// Bound precision applies to integer requests.
	if got := Int(20).rebase(19, 1).String(); got != "19.0" {
		t.Errorf("rebase bound precision = %q, want 19.0", got)
	}
	if got := Fixed(25, 3).rebase(19, 1).String(); got != "19.000" {
		t.Errorf("rebase wider caller = %q, want 19.000", got)
	}
}

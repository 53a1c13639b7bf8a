package inspection

import (
	"errors"
	"testing"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in   string
		want Location
	}{
		{"1:1-1:10", Location{StartLine: 1, StartCh: 1, EndLine: 1, EndCh: 10}},
		{"3:5-7:2", Location{StartLine: 3, StartCh: 5, EndLine: 7, EndCh: 2}},
		{"12:4", Location{StartLine: 12, StartCh: 4, EndLine: 12, EndCh: 4}},
		{"0:0", Location{}},
		{" 2:3-2:8 ", Location{StartLine: 2, StartCh: 3, EndLine: 2, EndCh: 8}},
		{"9", Location{StartLine: 9, EndLine: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocation(tt.in)
			if err != nil {
				t.Fatalf("ParseLocation(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLocation(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLocationInvalid(t *testing.T) {
	for _, in := range []string{"", "a:1", "1:b", "1:1-x:2", "1:1-2:y"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseLocation(in)
			if !errors.Is(err, ErrInvalidLocation) {
				t.Fatalf("expected ErrInvalidLocation for %q, got %v", in, err)
			}
		})
	}
}

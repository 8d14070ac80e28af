package scenario

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{name: "plain integer", text: "100", want: "100"},
		{name: "plain decimal", text: "99.95", want: "99.95"},
		{name: "simple addition", text: "20+15", want: "35"},
		{name: "expression with spaces", text: "20 + 15.5", want: "35.5"},
		{name: "multiplication", text: "3*4", want: "12"},
		{name: "division rounds to 2dp", text: "100/3", want: "33.33"},
		{name: "comma rejected", text: "10,5", wantErr: true},
		{name: "zero rejected", text: "0", wantErr: true},
		{name: "negative rejected", text: "-5", wantErr: true},
		{name: "negative expression rejected", text: "5-10", wantErr: true},
		{name: "garbage rejected", text: "ten euros", wantErr: true},
		{name: "empty rejected", text: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.text, "try again")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) expected error, got %s", tt.text, got)
				}
				if _, ok := err.(*ValidationError); !ok {
					t.Fatalf("ParseAmount(%q) expected ValidationError, got %T", tt.text, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.text, err)
			}
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.text, got, want)
			}
		})
	}
}

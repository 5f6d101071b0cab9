package util

import (
	"errors"
	"testing"
	"time"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"required ok", ValidateRequired("x", "f"), false},
		{"required empty", ValidateRequired("", "f"), true},
		{"positive", ValidatePositive(1, "f"), false},
		{"zero", ValidatePositive(0, "f"), true},
		{"duration in range", ValidateDuration(time.Second, time.Millisecond, time.Minute, "f"), false},
		{"duration too long", ValidateDuration(time.Hour, time.Millisecond, time.Minute, "f"), true},
		{"endpoint", ValidateEndpoint("127.0.0.1:9050", "f"), false},
		{"endpoint no port", ValidateEndpoint("127.0.0.1", "f"), true},
		{"endpoint empty port", ValidateEndpoint("127.0.0.1:", "f"), true},
		{"slice", ValidateSliceNotEmpty([]int{1}, "f"), false},
		{"empty slice", ValidateSliceNotEmpty([]int(nil), "f"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", tt.err, tt.wantErr)
			}
			if tt.err != nil {
				var ve ValidationError
				if !errors.As(tt.err, &ve) || ve.Field != "f" {
					t.Errorf("expected ValidationError for field f, got %v", tt.err)
				}
			}
		})
	}
}

func TestEncodePayload_RoundTrip(t *testing.T) {
	type entry struct {
		Name  string   `json:"name"`
		Flags []string `json:"flags"`
	}
	in := entry{Name: "relay", Flags: []string{"Fast", "Guard"}}
	b, err := EncodePayload(in)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	out, err := DecodePayload[entry](b)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if out.Name != in.Name || len(out.Flags) != 2 || out.Flags[1] != "Guard" {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if _, err := DecodePayload[entry]([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for garbage input")
	}
}

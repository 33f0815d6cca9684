package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestDecodeLenient(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		wantOK bool
	}{
		{name: "object", input: []byte(`{"mu": 1.5}`), wantOK: true},
		{name: "empty", input: nil, wantOK: false},
		{name: "null", input: []byte(`null`), wantOK: false},
		{name: "whitespace", input: []byte("  \n"), wantOK: false},
		{name: "malformed", input: []byte(`{"mu": `), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst map[string]any
			got := DecodeLenient(tt.input, &dst)
			if got != tt.wantOK {
				t.Errorf("DecodeLenient(%q) = %v, want %v", tt.input, got, tt.wantOK)
			}
			if !got && dst != nil {
				t.Errorf("DecodeLenient(%q) modified dst on failure: %v", tt.input, dst)
			}
		})
	}
}

func TestFlexibleFloat(t *testing.T) {
	tests := []struct {
		name   string
		input  json.RawMessage
		want   float64
		wantOK bool
	}{
		{name: "number", input: json.RawMessage(`3.25`), want: 3.25, wantOK: true},
		{name: "numeric string", input: json.RawMessage(`" 12 "`), want: 12, wantOK: true},
		{name: "text", input: json.RawMessage(`"high"`), wantOK: false},
		{name: "bool", input: json.RawMessage(`true`), wantOK: false},
		{name: "null", input: json.RawMessage(`null`), wantOK: false},
		{name: "nil", input: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlexibleFloat(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("FlexibleFloat(%s) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("FlexibleFloat(%s) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFlexibleFloatSlice(t *testing.T) {
	got := FlexibleFloatSlice([]byte(`[0.5, "0.25", "x", 0.25]`))
	want := []float64{0.5, 0.25, 0.25}
	if len(got) != len(want) {
		t.Fatalf("FlexibleFloatSlice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FlexibleFloatSlice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if got := FlexibleFloatSlice([]byte(`not json`)); got != nil {
		t.Errorf("FlexibleFloatSlice(malformed) = %v, want nil", got)
	}
}

func TestFlexibleInt64Slice(t *testing.T) {
	got := FlexibleInt64Slice([]byte(`[1, "2", 2.5, 7]`))
	want := []int64{1, 2, 7}
	if len(got) != len(want) {
		t.Fatalf("FlexibleInt64Slice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FlexibleInt64Slice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

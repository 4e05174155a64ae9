package snapshot

import (
	"bytes"
	"testing"

	"garden-notifier/pkg/notifier"
)

func TestReplaceDetectsChange(t *testing.T) {
	s := NewStore()

	changed, prev, err := s.Replace(notifier.ChannelStock, []byte(`{"seeds":[{"item_id":"carrot","quantity":5}]}`), nil)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if !changed {
		t.Error("first Replace() changed = false, want true")
	}
	if prev != nil {
		t.Errorf("first Replace() previous = %v, want nil", prev)
	}

	changed, prev, err = s.Replace(notifier.ChannelStock, []byte(`{"seeds":[{"item_id":"carrot","quantity":5}]}`), nil)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if changed {
		t.Error("identical Replace() changed = true, want false")
	}
	if prev == nil {
		t.Error("identical Replace() previous = nil, want stored snapshot")
	}

	changed, _, err = s.Replace(notifier.ChannelStock, []byte(`{"seeds":[{"item_id":"carrot","quantity":0}]}`), nil)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if !changed {
		t.Error("modified Replace() changed = false, want true")
	}
}

func TestReplaceIgnoresKeyOrder(t *testing.T) {
	tests := []struct {
		name   string
		first  string
		second string
		want   bool // changed on second call
	}{
		{
			name:   "reordered object keys",
			first:  `{"a":1,"b":2}`,
			second: `{"b":2,"a":1}`,
			want:   false,
		},
		{
			name:   "reordered nested keys",
			first:  `{"seeds":[{"item_id":"carrot","quantity":5}]}`,
			second: `{"seeds":[{"quantity":5,"item_id":"carrot"}]}`,
			want:   false,
		},
		{
			name:   "whitespace only",
			first:  `{"a": 1}`,
			second: `{ "a":1 }`,
			want:   false,
		},
		{
			name:   "value actually differs",
			first:  `{"a":1}`,
			second: `{"a":2}`,
			want:   true,
		},
		{
			name:   "array order matters",
			first:  `{"a":[1,2]}`,
			second: `{"a":[2,1]}`,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			if _, _, err := s.Replace(notifier.ChannelStock, []byte(tt.first), nil); err != nil {
				t.Fatalf("Replace(first) error = %v", err)
			}
			changed, _, err := s.Replace(notifier.ChannelStock, []byte(tt.second), nil)
			if err != nil {
				t.Fatalf("Replace(second) error = %v", err)
			}
			if changed != tt.want {
				t.Errorf("Replace(second) changed = %v, want %v", changed, tt.want)
			}
		})
	}
}

func TestReplaceChannelsIndependent(t *testing.T) {
	s := NewStore()

	if _, _, err := s.Replace(notifier.ChannelStock, []byte(`{"a":1}`), nil); err != nil {
		t.Fatalf("Replace(stock) error = %v", err)
	}
	changed, prev, err := s.Replace(notifier.ChannelWeather, []byte(`{"a":1}`), nil)
	if err != nil {
		t.Fatalf("Replace(weather) error = %v", err)
	}
	if !changed {
		t.Error("weather Replace() changed = false, want true (channels never share state)")
	}
	if prev != nil {
		t.Error("weather Replace() previous != nil, want nil")
	}
}

func TestReplaceRejectsMalformedPayload(t *testing.T) {
	s := NewStore()

	if _, _, err := s.Replace(notifier.ChannelStock, []byte(`{"a":1}`), nil); err != nil {
		t.Fatalf("Replace(valid) error = %v", err)
	}

	_, _, err := s.Replace(notifier.ChannelStock, []byte(`{not json`), nil)
	if err == nil {
		t.Fatal("Replace(malformed) error = nil, want error")
	}

	// The stored snapshot must be untouched.
	snap := s.Get(notifier.ChannelStock)
	if snap == nil {
		t.Fatal("Get() = nil after failed Replace, want prior snapshot")
	}
	if !bytes.Equal(snap.Raw, []byte(`{"a":1}`)) {
		t.Errorf("Get().Raw = %s, want prior canonical payload", snap.Raw)
	}
}

func TestCanonicalize(t *testing.T) {
	a, err := Canonicalize([]byte(`{"b":2,"a":[{"y":1,"x":0}]}`))
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}
	b, err := Canonicalize([]byte(`{"a":[{"x":0,"y":1}],"b":2}`))
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("canonical forms differ: %s vs %s", a, b)
	}
}

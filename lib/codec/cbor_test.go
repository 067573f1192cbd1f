// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type envelope struct {
	Kind    string `cbor:"k"`
	Payload []byte `cbor:"p"`
	When    int64  `cbor:"w"`
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"zeta": 1, "alpha": "a", "mid": []byte{1, 2}}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for attempt := 0; attempt < 20; attempt++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("attempt %d: encoding differs", attempt)
		}
	}
}

func TestStructRoundTripKeepsBytes(t *testing.T) {
	original := envelope{Kind: "offer", Payload: []byte{0, 0xff, 7}, When: 1700000000000000000}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded envelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Kind != original.Kind || decoded.When != original.When || !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{"k": "answer", "extra": true})
	if err != nil {
		t.Fatal(err)
	}
	var decoded envelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Kind != "answer" {
		t.Errorf("Kind = %q, want answer", decoded.Kind)
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	var decoded envelope
	if err := Unmarshal([]byte{0xff, 0x00}, &decoded); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}

func TestUnmarshalAnyMapHasStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"offer": "sdp"})
	if err != nil {
		t.Fatal(err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	fields, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if fields["offer"] != "sdp" {
		t.Errorf("offer = %v, want sdp", fields["offer"])
	}
}

func TestUnmarshalRejectsOversizedArray(t *testing.T) {
	data, err := Marshal(make([]int, maxSignalArray+1))
	if err != nil {
		t.Fatal(err)
	}
	var decoded []int
	if err := Unmarshal(data, &decoded); err == nil {
		t.Error("expected error for array over the element limit")
	}
}

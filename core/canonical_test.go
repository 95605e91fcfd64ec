package core

import "testing"

func TestCanonicalizeSortsObjectKeys(t *testing.T) {
	b, err := Canonicalize(map[string]any{"b": 1, "a": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != `{"a":2,"b":1}` {
		t.Fatalf("expected sorted keys, got %s", b)
	}
}

func TestCanonicalizeIgnoresStructFieldOrder(t *testing.T) {
	type ab struct {
		B int `json:"b"`
		A int `json:"a"`
	}
	b, err := Canonicalize(ab{B: 1, A: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != `{"a":2,"b":1}` {
		t.Fatalf("expected canonical key order regardless of struct field order, got %s", b)
	}
}

func TestCanonicalizeNestedObjectsAndArrays(t *testing.T) {
	b, err := Canonicalize(map[string]any{
		"z": []any{map[string]any{"y": 1, "x": 2}, 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != `{"z":[{"x":2,"y":1},3]}` {
		t.Fatalf("expected recursively canonicalized nested structures, got %s", b)
	}
}

func TestCanonicalizeIsDeterministicAcrossCalls(t *testing.T) {
	v := map[string]any{"c": 1, "a": 2, "b": 3}
	first, err := Canonicalize(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Canonicalize(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected repeated canonicalization to be stable, got %s vs %s", first, second)
	}
}

func TestHashHexIsDeterministicAndDistinct(t *testing.T) {
	h1 := HashHex([]byte("abc"))
	h2 := HashHex([]byte("abc"))
	h3 := HashHex([]byte("abd"))
	if h1 != h2 {
		t.Fatal("expected the same input to hash identically")
	}
	if h1 == h3 {
		t.Fatal("expected different inputs to hash differently")
	}
	if len(h1) != 64 {
		t.Fatalf("expected a 64-char hex sha256 digest, got %d chars", len(h1))
	}
}

func TestHashCanonicalMatchesHashHexOfCanonicalForm(t *testing.T) {
	v := map[string]any{"b": 1, "a": 2}
	want, err := Canonicalize(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := HashCanonical(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != HashHex(want) {
		t.Fatal("expected HashCanonical to equal HashHex of the canonical bytes")
	}
}

func TestFingerprintIsDeterministicAndFieldSensitive(t *testing.T) {
	f1 := Fingerprint("do a thing", "abc123", "go")
	f2 := Fingerprint("do a thing", "abc123", "go")
	if f1 != f2 {
		t.Fatal("expected identical inputs to fingerprint identically")
	}
	if f1 == Fingerprint("do a thing", "abc123", "python") {
		t.Fatal("expected a different language to change the fingerprint")
	}
	if f1 == Fingerprint("do a different thing", "abc123", "go") {
		t.Fatal("expected a different prompt to change the fingerprint")
	}
}

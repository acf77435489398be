package randx

import "testing"

func TestFileKey(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := FileKey()
		if err != nil {
			t.Fatalf("FileKey: %v", err)
		}
		if len(key) != FileKeyLength {
			t.Fatalf("expected length %d, got %q", FileKeyLength, key)
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %q", key)
		}
		seen[key] = true
	}
}

func TestIsValidRoomName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"lobby", true},
		{"game-night", true},
		{"日本語", true},
		{"", false},
		{"has space", false},
		{"has\ttab", false},
		{"slash/name", false},
		{"back\\slash", false},
	}
	for _, tt := range tests {
		if got := IsValidRoomName(tt.name); got != tt.want {
			t.Errorf("IsValidRoomName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	if IsValidRoomName(string(long)) {
		t.Error("names over 64 bytes must be rejected")
	}
}

func TestIsValidUsername(t *testing.T) {
	t.Parallel()

	if !IsValidUsername("alice") {
		t.Error("plain name must be accepted")
	}
	if IsValidUsername("") {
		t.Error("empty name must be rejected")
	}

	long := make([]byte, 33)
	for i := range long {
		long[i] = 'a'
	}
	if IsValidUsername(string(long)) {
		t.Error("names over 32 bytes must be rejected")
	}
}

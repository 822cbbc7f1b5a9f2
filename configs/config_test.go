package config

import (
	"testing"

	"github.com/gofrs/uuid"
)

func TestCreateUniqueInstance(t *testing.T) {
	first := CreateUniqueInstance("test")
	if _, err := uuid.FromString(first); err != nil {
		t.Fatalf("instance id %q is not a uuid: %v", first, err)
	}
	if got := GetInstanceId(); got != first {
		t.Fatalf("GetInstanceId() = %q, want %q", got, first)
	}

	second := CreateUniqueInstance("test")
	if second == first {
		t.Fatalf("instance id must differ per call, got %q twice", first)
	}
	if got := GetInstanceId(); got != second {
		t.Fatalf("GetInstanceId() = %q, want latest id %q", got, second)
	}
}

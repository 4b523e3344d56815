package keyslot

import (
	"errors"
	"testing"
)

func TestValidateIDBoundaries(t *testing.T) {
	table := newTestTable(t, 4)
	volatileMin := table.VolatileMin()

	tests := []struct {
		name       string
		id         uint32
		vendorOK   bool
		volatileOK bool
		wantOK     bool
	}{
		{"UserMin", UserMin, false, false, true},
		{"UserMax", UserMax, false, false, true},
		{"UserMaxPlusOneIsVendor", UserMax + 1, false, false, false},
		{"VendorMinAllowed", VendorMin, true, false, true},
		{"VendorMinRejected", VendorMin, false, false, false},
		{"VendorTop", volatileMin - 1, true, false, true},
		{"VendorTopPlusOneIsVolatile", volatileMin, true, false, false},
		{"VolatileMinAllowed", volatileMin, false, true, true},
		{"VolatileMaxAllowed", VendorMax, false, true, true},
		{"VolatileMinRejected", volatileMin, false, false, false},
		{"NilIdentifier", 0, true, true, false},
		{"BeyondVendorMax", VendorMax + 1, true, true, false},
		{"MaxUint32", 0xffffffff, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := table.ValidateID(MakeKeyID(0, tt.id), tt.vendorOK, tt.volatileOK)
			if tt.wantOK && err != nil {
				t.Errorf("ValidateID(0x%08x) = %v, want success", tt.id, err)
			}
			if !tt.wantOK {
				if !errors.Is(err, ErrInvalidHandle) {
					t.Errorf("ValidateID(0x%08x) = %v, want ErrInvalidHandle", tt.id, err)
				}
			}
		})
	}
}

func TestValidateIDIgnoresTableContents(t *testing.T) {
	table := newTestTable(t, 4)
	if err := table.Initialize(); err != nil {
		t.Fatal(err)
	}

	bad := MakeKeyID(0, VendorMax+1)
	if err := table.ValidateID(bad, true, true); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}

	// Occupying slots changes nothing about classification
	if _, err := table.ImportVolatile(0, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := table.ValidateID(bad, true, true); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
}

func TestKeyIDNil(t *testing.T) {
	if !(KeyID{}).IsNil() {
		t.Error("zero KeyID should be nil")
	}
	if !MakeKeyID(5, 0).IsNil() {
		t.Error("a KeyID with numeric id 0 is the empty sentinel regardless of owner")
	}
	if MakeKeyID(0, 7).IsNil() {
		t.Error("KeyID with id 7 should not be nil")
	}
}

func TestLifetimeEncoding(t *testing.T) {
	external := MakeLifetime(uint8(LifetimePersistent), 3)
	if !external.IsExternal() {
		t.Error("lifetime with location 3 should be external")
	}
	if external.Persistence() != uint8(LifetimePersistent) {
		t.Errorf("persistence = %d, want %d", external.Persistence(), uint8(LifetimePersistent))
	}
	if external.Location() != 3 {
		t.Errorf("location = %d, want 3", external.Location())
	}

	if LifetimeVolatile.IsExternal() || LifetimePersistent.IsExternal() {
		t.Error("local lifetimes must not be external")
	}
}

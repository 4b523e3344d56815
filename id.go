package keyslot

import "fmt"

// KeyID names a key: an owner context plus a numeric identifier. The numeric
// space is partitioned into disjoint ranges; see the range constants. The
// zero value is the nil identifier and never names a key.
type KeyID struct {
	Owner int32
	ID    uint32
}

// MakeKeyID builds a key identifier from an owner context and a numeric id
func MakeKeyID(owner int32, id uint32) KeyID {
	return KeyID{Owner: owner, ID: id}
}

// IsNil reports whether the identifier is the empty sentinel
func (k KeyID) IsNil() bool {
	return k.ID == 0
}

func (k KeyID) String() string {
	return fmt.Sprintf("%d/0x%08x", k.Owner, k.ID)
}

// Partition of the numeric identifier space. The volatile range occupies the
// top of the vendor space and its width equals the table capacity, so its
// lower bound is a per-table value (Table.VolatileMin); the vendor range for
// validation purposes is VendorMin up to but excluding that bound.
const (
	// UserMin is the smallest application-assigned persistent identifier
	UserMin uint32 = 0x00000001
	// UserMax is the largest application-assigned persistent identifier
	UserMax uint32 = 0x3fffffff
	// VendorMin is the smallest implementation-reserved identifier
	VendorMin uint32 = 0x40000000
	// VendorMax is the largest identifier of any kind; volatile
	// identifiers count down from it
	VendorMax uint32 = 0x7fffffff
)

// ValidateID classifies a key identifier against the range partition.
// User-range identifiers are always accepted; vendor-range identifiers only
// when vendorOK, volatile-range identifiers only when volatileOK. Everything
// else, the nil identifier included, fails ErrInvalidHandle. Pure
// classification, no side effects.
func (t *Table) ValidateID(key KeyID, vendorOK, volatileOK bool) error {
	id := key.ID

	if UserMin <= id && id <= UserMax {
		return nil
	}

	if vendorOK && VendorMin <= id && id < t.volatileMin {
		return nil
	}

	if volatileOK && t.volatileMin <= id && id <= VendorMax {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrInvalidHandle, key)
}

// isVolatileID reports whether id falls in this table's volatile range
func (t *Table) isVolatileID(id uint32) bool {
	return t.volatileMin <= id && id <= VendorMax
}

// volatileIndex maps a volatile identifier to its fixed table index. A
// volatile key with identifier id is only ever stored at this index; every
// mutator preserves that placement so lookup needs no scan.
func (t *Table) volatileIndex(id uint32) int {
	return int(id - t.volatileMin)
}

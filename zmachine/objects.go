package zmachine

// ---------------------------------------------------------------------------
// Object System
// ---------------------------------------------------------------------------
//
// v3 object entries are 9 bytes: 32 attribute bits, byte-wide parent, sibling
// and child links, and a 2-byte property-table address. Objects are numbered
// from 1; 0 is the null object. The 31-word property-defaults table sits
// immediately before the first object entry.

const (
	objectEntrySize   = 9
	objectAttrBytes   = 4
	objectDefaults    = 31
	objectParentOff   = 4
	objectSiblingOff  = 5
	objectChildOff    = 6
	objectPropOff     = 7
	maxPropertyNumber = 31
)

// objectAddr returns the address of an object's 9-byte entry.
func (z *Machine) objectAddr(obj int) int {
	if obj == 0 {
		fail(ErrNullObject)
	}
	return z.header.ObjectTableBase + objectDefaults*2 + (obj-1)*objectEntrySize
}

// ObjectCount estimates the number of objects using the convention that the
// first property table follows the last object entry.
func (z *Machine) ObjectCount() int {
	end := z.propTableAddr(1)
	return (end - z.header.ObjectTableBase - objectDefaults*2) / objectEntrySize
}

// ---------------------------------------------------------------------------
// Tree links
// ---------------------------------------------------------------------------

// Parent returns an object's parent, or 0. The null object's links all read
// as 0.
func (z *Machine) Parent(obj int) int {
	if obj == 0 {
		return 0
	}
	return int(z.mem.U8(z.objectAddr(obj) + objectParentOff))
}

// Sibling returns an object's next sibling, or 0.
func (z *Machine) Sibling(obj int) int {
	if obj == 0 {
		return 0
	}
	return int(z.mem.U8(z.objectAddr(obj) + objectSiblingOff))
}

// Child returns an object's first child, or 0.
func (z *Machine) Child(obj int) int {
	if obj == 0 {
		return 0
	}
	return int(z.mem.U8(z.objectAddr(obj) + objectChildOff))
}

func (z *Machine) setParent(obj, parent int) {
	z.mem.WriteU8(z.objectAddr(obj)+objectParentOff, byte(parent))
}

func (z *Machine) setSibling(obj, sibling int) {
	z.mem.WriteU8(z.objectAddr(obj)+objectSiblingOff, byte(sibling))
}

func (z *Machine) setChild(obj, child int) {
	z.mem.WriteU8(z.objectAddr(obj)+objectChildOff, byte(child))
}

// RemoveObj detaches obj from its parent's child chain, fixing sibling links.
// The object's own subtree is left intact. Removing a parentless object is a
// no-op.
func (z *Machine) RemoveObj(obj int) {
	if obj == 0 {
		fail(ErrNullObject)
	}
	parent := z.Parent(obj)
	if parent == 0 {
		return
	}

	next := z.Sibling(obj)
	if z.Child(parent) == obj {
		z.setChild(parent, next)
	} else {
		prev := z.Child(parent)
		for prev != 0 && z.Sibling(prev) != obj {
			prev = z.Sibling(prev)
		}
		if prev != 0 {
			z.setSibling(prev, next)
		}
	}
	z.setParent(obj, 0)
	z.setSibling(obj, 0)
}

// InsertObj makes obj the first child of dest. The prior first child becomes
// obj's sibling.
func (z *Machine) InsertObj(obj, dest int) {
	if obj == 0 || dest == 0 {
		fail(ErrNullObject)
	}
	if z.Child(dest) == obj {
		return
	}
	z.RemoveObj(obj)
	z.setParent(obj, dest)
	z.setSibling(obj, z.Child(dest))
	z.setChild(dest, obj)
}

// ---------------------------------------------------------------------------
// Attributes
// ---------------------------------------------------------------------------

func (z *Machine) attrLocation(obj, attr int) (addr int, bit byte) {
	if obj == 0 {
		fail(ErrNullObject)
	}
	if attr < 0 || attr > 31 {
		failf(ErrOutOfBounds, "attribute %d", attr)
	}
	// Attribute 0 is the most significant bit of the first byte.
	return z.objectAddr(obj) + attr/8, 0x80 >> (attr % 8)
}

// Attr reports whether an attribute bit is set.
func (z *Machine) Attr(obj, attr int) bool {
	addr, bit := z.attrLocation(obj, attr)
	return z.mem.U8(addr)&bit != 0
}

// SetAttr sets an attribute bit.
func (z *Machine) SetAttr(obj, attr int) {
	addr, bit := z.attrLocation(obj, attr)
	z.mem.WriteU8(addr, z.mem.U8(addr)|bit)
}

// ClearAttr clears an attribute bit.
func (z *Machine) ClearAttr(obj, attr int) {
	addr, bit := z.attrLocation(obj, attr)
	z.mem.WriteU8(addr, z.mem.U8(addr)&^bit)
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// propTableAddr returns the address of an object's property table.
func (z *Machine) propTableAddr(obj int) int {
	return int(z.mem.U16(z.objectAddr(obj) + objectPropOff))
}

// ShortName returns an object's ZSCII short name, or "" when it has none.
func (z *Machine) ShortName(obj int) string {
	addr := z.propTableAddr(obj)
	if z.mem.U8(addr) == 0 {
		return ""
	}
	text, _ := decodeZString(z.mem, z.header.AbbreviationsBase, addr+1, true)
	return text
}

// property describes one entry in an object's property list. addr is the
// address of the property data (after the size byte); addr == 0 means the
// property is absent.
type property struct {
	number int
	size   int
	addr   int
}

// firstPropAddr returns the address of the first size byte in an object's
// property list, past the short name.
func (z *Machine) firstPropAddr(obj int) int {
	addr := z.propTableAddr(obj)
	return addr + 1 + int(z.mem.U8(addr))*2
}

// readProperty parses the size byte at addr: SB = 32*(size-1) | number.
func (z *Machine) readProperty(addr int) property {
	sb := z.mem.U8(addr)
	return property{
		number: int(sb % 32),
		size:   int(sb/32) + 1,
		addr:   addr + 1,
	}
}

// findProperty walks the descending property list for the numbered property.
// Returns a zero property on a miss.
func (z *Machine) findProperty(obj, number int) property {
	addr := z.firstPropAddr(obj)
	for {
		prop := z.readProperty(addr)
		switch {
		case prop.number == 0 || prop.number < number:
			return property{}
		case prop.number == number:
			return prop
		}
		addr = prop.addr + prop.size
	}
}

// PropDefault returns the global default value of the numbered property.
func (z *Machine) PropDefault(number int) uint16 {
	if number < 1 || number > maxPropertyNumber {
		failf(ErrOutOfBounds, "property default %d", number)
	}
	return z.mem.U16(z.header.ObjectTableBase + (number-1)*2)
}

// Prop returns a property value: size 1 zero-extended, size 2 as a word,
// larger sizes as their first word, and the global default when the object
// lacks the property.
func (z *Machine) Prop(obj, number int) uint16 {
	prop := z.findProperty(obj, number)
	if prop.addr == 0 {
		return z.PropDefault(number)
	}
	if prop.size == 1 {
		return uint16(z.mem.U8(prop.addr))
	}
	return z.mem.U16(prop.addr)
}

// PropAddr returns the address of a property's data, or 0 when absent.
func (z *Machine) PropAddr(obj, number int) int {
	return z.findProperty(obj, number).addr
}

// PropLen returns the size of the property whose data starts at dataAddr.
// PropLen(0) is 0 by definition.
func (z *Machine) PropLen(dataAddr int) int {
	if dataAddr == 0 {
		return 0
	}
	return int(z.mem.U8(dataAddr-1)/32) + 1
}

// NextProp returns the number of the property after the given one in the
// object's descending list; number 0 asks for the first. Returns 0 past the
// end.
func (z *Machine) NextProp(obj, number int) int {
	if number == 0 {
		return z.readProperty(z.firstPropAddr(obj)).number
	}
	prop := z.findProperty(obj, number)
	if prop.addr == 0 {
		fail(ErrNoProp)
	}
	return z.readProperty(prop.addr + prop.size).number
}

// PutProp writes a property value. The property must exist on the object and
// have size 1 or 2.
func (z *Machine) PutProp(obj, number int, value uint16) {
	prop := z.findProperty(obj, number)
	switch {
	case prop.addr == 0:
		failf(ErrNoProp, "put_prop %d on object %d", number, obj)
	case prop.size == 1:
		z.mem.WriteU8(prop.addr, byte(value))
	case prop.size == 2:
		z.mem.WriteU16(prop.addr, value)
	default:
		failf(ErrPropSize, "put_prop %d on object %d has size %d", number, obj, prop.size)
	}
}

// Package zobject reads and mutates the v3 object table: the 9-byte object
// records, their 32 attribute bits, and the parent/sibling/child tree they
// form.
package zobject

import (
	"encoding/binary"
	"fmt"

	"zmachine3/zcore"
	"zmachine3/zstring"
)

// Object is a snapshot of one object-table entry. Parent/Sibling/Child and
// the attribute word are re-read from memory on every Get call - callers
// must never cache an Object across an operation that could mutate the
// tree (see Insert).
type Object struct {
	core        *zcore.Core
	BaseAddress uint32
	Id          uint16
	Name        string
	Attributes  uint32
	Parent      uint16
	Sibling     uint16
	Child       uint16
	PropertyPtr uint16
}

// recordsBase is where the 31-word property-default table ends and the
// object records begin.
func recordsBase(objectTableBase uint16) uint32 {
	return uint32(objectTableBase) + 31*2
}

// Get reads object index id out of the table. id == 0 is invalid and
// panics - object 0 means "no object" and must never be dereferenced.
func Get(core *zcore.Core, objectTableBase uint16, alphabets *zstring.Alphabets, abbreviationBase uint16, id uint16) Object {
	if id == 0 {
		panic("zobject: object 0 does not exist and cannot be dereferenced")
	}

	base := recordsBase(objectTableBase) + uint32(id-1)*9

	propertyPtr := core.ReadWord(base + 7)
	nameLength := core.ReadByte(uint32(propertyPtr))
	var name string
	if nameLength > 0 {
		name, _ = zstring.Decode(core, uint32(propertyPtr)+1, alphabets, abbreviationBase, false)
	}

	return Object{
		core:        core,
		BaseAddress: base,
		Id:          id,
		Name:        name,
		Attributes:  binary.BigEndian.Uint32(core.ReadSlice(base, base+4)),
		Parent:      uint16(core.ReadByte(base + 4)),
		Sibling:     uint16(core.ReadByte(base + 5)),
		Child:       uint16(core.ReadByte(base + 6)),
		PropertyPtr: propertyPtr,
	}
}

// TestAttribute reports whether attribute bit a (0-31, bit 31 is attribute
// 0) is set. a > 31 is a caller error - the machine core is responsible for
// turning that into a fatal Break before calling this.
func (o *Object) TestAttribute(a uint16) bool {
	mask := uint32(1) << (31 - a)
	return o.Attributes&mask == mask
}

func (o *Object) SetAttribute(a uint16) {
	o.Attributes |= uint32(1) << (31 - a)
	o.writeAttributes()
}

func (o *Object) ClearAttribute(a uint16) {
	o.Attributes &^= uint32(1) << (31 - a)
	o.writeAttributes()
}

func (o *Object) writeAttributes() {
	o.core.WriteWord(o.BaseAddress, uint16(o.Attributes>>16))
	o.core.WriteWord(o.BaseAddress+2, uint16(o.Attributes))
}

func (o *Object) setParent(id uint16) {
	o.core.WriteByte(o.BaseAddress+4, uint8(id))
	o.Parent = id
}

func (o *Object) setSibling(id uint16) {
	o.core.WriteByte(o.BaseAddress+5, uint8(id))
	o.Sibling = id
}

func (o *Object) setChild(id uint16) {
	o.core.WriteByte(o.BaseAddress+6, uint8(id))
	o.Child = id
}

// Remove detaches obj from its current parent's sibling chain, leaving it
// parentless. Used standalone by remove_obj and as the first step of
// Insert.
func Remove(core *zcore.Core, objectTableBase uint16, alphabets *zstring.Alphabets, abbreviationBase uint16, objId uint16) {
	obj := Get(core, objectTableBase, alphabets, abbreviationBase, objId)
	if obj.Parent == 0 {
		return
	}

	parent := Get(core, objectTableBase, alphabets, abbreviationBase, obj.Parent)
	if parent.Child == obj.Id {
		parent.setChild(obj.Sibling)
	} else {
		curId := parent.Child
		for curId != 0 {
			cur := Get(core, objectTableBase, alphabets, abbreviationBase, curId)
			if cur.Sibling == obj.Id {
				cur.setSibling(obj.Sibling)
				break
			}
			curId = cur.Sibling
		}
	}

	obj.setParent(0)
	obj.setSibling(0)
}

// Insert implements insert_obj: detach objId from wherever it currently
// sits, then make it the first child of destId. It re-reads destId after
// the detach rather than reusing a snapshot taken beforehand, because
// Remove may have changed destId's own child link (if objId was destId's
// child, or an ancestor of destId's child chain) - an early revision of
// this routine that skipped the re-read is a known source of tree
// corruption and must not be repeated.
func Insert(core *zcore.Core, objectTableBase uint16, alphabets *zstring.Alphabets, abbreviationBase uint16, objId uint16, destId uint16) {
	Remove(core, objectTableBase, alphabets, abbreviationBase, objId)

	dest := Get(core, objectTableBase, alphabets, abbreviationBase, destId)
	obj := Get(core, objectTableBase, alphabets, abbreviationBase, objId)

	obj.setSibling(dest.Child)
	obj.setParent(dest.Id)
	dest.setChild(obj.Id)
}

func validateAttribute(a uint16) error {
	if a > 31 {
		return fmt.Errorf("attribute number %d out of range 0..31", a)
	}
	return nil
}

// ValidateAttribute exposes the range check so the machine core can turn an
// out-of-range attribute number into a fatal Break before touching memory.
func ValidateAttribute(a uint16) error {
	return validateAttribute(a)
}

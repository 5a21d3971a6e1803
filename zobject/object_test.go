package zobject_test

import (
	"testing"

	"zmachine3/zcore"
	"zmachine3/zobject"
	"zmachine3/zstring"
)

// buildObjectTable lays out a property-default table (31 words) followed by
// three 9-byte v3 object records and their property blocks, wired into a
// small tree: obj1 is the parent of obj2 and obj3 (obj2 first, obj3 next).
//
//	obj1 (attr 3 set, property 5 = 0x1234)
//	├── obj2 (property 3 = 0x07)
//	└── obj3 (no properties, name "a")
func buildObjectTable(t *testing.T) (*zcore.Core, uint16) {
	t.Helper()

	const objectTableBase = 0x40
	const recordsBase = objectTableBase + 31*2 // 0x7e

	buf := make([]uint8, 0x200)
	buf[0x00] = 3
	buf[0x0e] = 0x02
	buf[0x0f] = 0x00
	buf[0x0a] = objectTableBase >> 8
	buf[0x0b] = objectTableBase & 0xff

	// Default for property 9: 0x0042.
	defaultOff := objectTableBase + (9-1)*2
	buf[defaultOff] = 0x00
	buf[defaultOff+1] = 0x42

	obj1 := recordsBase
	obj2 := recordsBase + 9
	obj3 := recordsBase + 18
	propsStart := recordsBase + 27

	// obj1: attribute 3 set (bit 31-3=28), parent 0, sibling 0, child obj2.
	buf[obj1] = 0x10 // bit 28 of the big-endian 32-bit word -> byte 0 (bits 24-31), bit index 28-24=4 -> 0x10
	buf[obj1+1] = 0x00
	buf[obj1+2] = 0x00
	buf[obj1+3] = 0x00
	buf[obj1+4] = 0    // parent
	buf[obj1+5] = 0    // sibling
	buf[obj1+6] = 2    // child = obj2 id
	buf[obj1+7] = byte(propsStart >> 8)
	buf[obj1+8] = byte(propsStart)

	obj1PropAddr := propsStart
	buf[obj1PropAddr] = 0 // no name
	buf[obj1PropAddr+1] = ((2 - 1) << 5) | 5
	buf[obj1PropAddr+2] = 0x12
	buf[obj1PropAddr+3] = 0x34
	buf[obj1PropAddr+4] = 0 // terminator
	obj2PropAddr := obj1PropAddr + 5

	// obj2: parent obj1, sibling obj3, no child.
	buf[obj2+4] = 1
	buf[obj2+5] = 3
	buf[obj2+6] = 0
	buf[obj2+7] = byte(obj2PropAddr >> 8)
	buf[obj2+8] = byte(obj2PropAddr)

	buf[obj2PropAddr] = 0 // no name
	buf[obj2PropAddr+1] = ((1 - 1) << 5) | 3
	buf[obj2PropAddr+2] = 0x07
	buf[obj2PropAddr+3] = 0 // terminator
	obj3PropAddr := obj2PropAddr + 4

	// obj3: parent obj1, no sibling, no child. Name "a".
	buf[obj3+4] = 1
	buf[obj3+5] = 0
	buf[obj3+6] = 0
	buf[obj3+7] = byte(obj3PropAddr >> 8)
	buf[obj3+8] = byte(obj3PropAddr)

	buf[obj3PropAddr] = 1 // name is 1 word long
	// "a" = A0 index 6, padded with 5,5 and terminated.
	nameWord := uint16(0x8000) | (uint16(6) << 10) | (uint16(5) << 5) | 5
	buf[obj3PropAddr+1] = byte(nameWord >> 8)
	buf[obj3PropAddr+2] = byte(nameWord)
	buf[obj3PropAddr+3] = 0 // terminator, no properties

	core, err := zcore.Load(buf)
	if err != nil {
		t.Fatalf("building test core: %v", err)
	}
	return core, objectTableBase
}

func TestGetObjectZeroPanics(t *testing.T) {
	core, base := buildObjectTable(t)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Get(0) to panic")
		}
	}()
	zobject.Get(core, base, &zstring.Default, 0, 0)
}

func TestObjectTreeLinks(t *testing.T) {
	core, base := buildObjectTable(t)

	obj1 := zobject.Get(core, base, &zstring.Default, 0, 1)
	obj2 := zobject.Get(core, base, &zstring.Default, 0, 2)
	obj3 := zobject.Get(core, base, &zstring.Default, 0, 3)

	if obj1.Child != 2 || obj1.Parent != 0 || obj1.Sibling != 0 {
		t.Fatalf("obj1 links: %+v", obj1)
	}
	if obj2.Parent != 1 || obj2.Sibling != 3 {
		t.Fatalf("obj2 links: %+v", obj2)
	}
	if obj3.Parent != 1 || obj3.Sibling != 0 {
		t.Fatalf("obj3 links: %+v", obj3)
	}
	if obj3.Name != "a" {
		t.Fatalf("obj3 name: got %q, want %q", obj3.Name, "a")
	}
}

func TestAttributes(t *testing.T) {
	core, base := buildObjectTable(t)

	obj1 := zobject.Get(core, base, &zstring.Default, 0, 1)
	if !obj1.TestAttribute(3) {
		t.Fatal("expected attribute 3 to be set")
	}
	if obj1.TestAttribute(4) {
		t.Fatal("expected attribute 4 to be clear")
	}

	obj1.SetAttribute(31)
	obj1.ClearAttribute(3)

	reloaded := zobject.Get(core, base, &zstring.Default, 0, 1)
	if !reloaded.TestAttribute(31) {
		t.Fatal("expected attribute 31 to be set after SetAttribute")
	}
	if reloaded.TestAttribute(3) {
		t.Fatal("expected attribute 3 to be clear after ClearAttribute")
	}
}

func TestPropertyLookupAndDefault(t *testing.T) {
	core, base := buildObjectTable(t)

	obj1 := zobject.Get(core, base, &zstring.Default, 0, 1)
	prop := zobject.GetProperty(core, base, &obj1, 5)
	if prop.DataAddress == 0 {
		t.Fatal("expected obj1 to have property 5")
	}
	if prop.Data[0] != 0x12 || prop.Data[1] != 0x34 {
		t.Fatalf("property 5 data: %v", prop.Data)
	}

	defaultProp := zobject.GetProperty(core, base, &obj1, 9)
	if defaultProp.DataAddress != 0 {
		t.Fatal("expected property 9 to come from the default table")
	}
	if defaultProp.Data[0] != 0x00 || defaultProp.Data[1] != 0x42 {
		t.Fatalf("default property 9 data: %v", defaultProp.Data)
	}

	next, ok := zobject.GetNextProperty(core, base, &obj1, 0)
	if !ok || next != 5 {
		t.Fatalf("first property: got (%d, %v), want (5, true)", next, ok)
	}
	next, ok = zobject.GetNextProperty(core, base, &obj1, 5)
	if !ok || next != 0 {
		t.Fatalf("property after last: got (%d, %v), want (0, true)", next, ok)
	}
}

func TestSetProperty(t *testing.T) {
	core, base := buildObjectTable(t)

	obj2 := zobject.Get(core, base, &zstring.Default, 0, 2)
	if err := zobject.SetProperty(core, &obj2, 3, 0x09); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}

	reloaded := zobject.Get(core, base, &zstring.Default, 0, 2)
	prop := zobject.GetProperty(core, base, &reloaded, 3)
	if prop.Data[0] != 0x09 {
		t.Fatalf("property 3 after SetProperty: %v", prop.Data)
	}

	if err := zobject.SetProperty(core, &obj2, 12, 0); err == nil {
		t.Fatal("expected error setting a property obj2 does not have")
	}
}

func TestInsertAndRemove(t *testing.T) {
	core, base := buildObjectTable(t)

	// Move obj3 to be a child of obj2, then detach it entirely.
	zobject.Insert(core, base, &zstring.Default, 0, 3, 2)

	obj1 := zobject.Get(core, base, &zstring.Default, 0, 1)
	obj2 := zobject.Get(core, base, &zstring.Default, 0, 2)
	obj3 := zobject.Get(core, base, &zstring.Default, 0, 3)

	if obj1.Child != 2 {
		t.Fatalf("obj1 child after insert: got %d, want 2", obj1.Child)
	}
	if obj2.Child != 3 {
		t.Fatalf("obj2 child after insert: got %d, want 3", obj2.Child)
	}
	if obj3.Parent != 2 || obj3.Sibling != 0 {
		t.Fatalf("obj3 links after insert: %+v", obj3)
	}

	zobject.Remove(core, base, &zstring.Default, 0, 3)
	obj3 = zobject.Get(core, base, &zstring.Default, 0, 3)
	if obj3.Parent != 0 {
		t.Fatalf("obj3 parent after remove: got %d, want 0", obj3.Parent)
	}
	obj2 = zobject.Get(core, base, &zstring.Default, 0, 2)
	if obj2.Child != 0 {
		t.Fatalf("obj2 child after remove: got %d, want 0", obj2.Child)
	}
}

// TestInsertIntoCurrentParent re-inserts an object into the parent it is
// already the first child of. The detach changes the destination's child
// link, so Insert must work from a fresh read of the destination - a stale
// snapshot would link the object to itself as its own sibling.
func TestInsertIntoCurrentParent(t *testing.T) {
	core, base := buildObjectTable(t)

	zobject.Insert(core, base, &zstring.Default, 0, 2, 1)

	obj1 := zobject.Get(core, base, &zstring.Default, 0, 1)
	obj2 := zobject.Get(core, base, &zstring.Default, 0, 2)

	if obj1.Child != 2 {
		t.Fatalf("obj1 child: got %d, want 2", obj1.Child)
	}
	if obj2.Parent != 1 {
		t.Fatalf("obj2 parent: got %d, want 1", obj2.Parent)
	}
	if obj2.Sibling != 3 {
		t.Fatalf("obj2 sibling: got %d, want 3 (not itself)", obj2.Sibling)
	}
}

package zobject

import (
	"fmt"

	"zmachine3/zcore"
)

// Property is one decoded entry from an object's property list.
type Property struct {
	Id          uint8
	Length      uint8 // 1 or 2 in v3
	DataAddress uint32
	Data        []uint8
}

func propertyTableStart(core *zcore.Core, o *Object) uint32 {
	nameLength := core.ReadByte(uint32(o.PropertyPtr))
	return uint32(o.PropertyPtr) + 1 + uint32(nameLength)*2
}

// propertyAt decodes the size byte at addr (v3: length = bits 7-5 + 1,
// index = bits 4-0) and the payload that follows it.
func propertyAt(core *zcore.Core, addr uint32) Property {
	sizeByte := core.ReadByte(addr)
	length := uint8(sizeByte>>5) + 1
	id := sizeByte & 0b1_1111
	dataAddr := addr + 1

	return Property{
		Id:          id,
		Length:      length,
		DataAddress: dataAddr,
		Data:        core.ReadSlice(dataAddr, dataAddr+uint32(length)),
	}
}

// GetProperty returns propertyId on obj, or the default from the
// property-default table if obj doesn't have it.
func GetProperty(core *zcore.Core, objectTableBase uint16, o *Object, propertyId uint8) Property {
	ptr := propertyTableStart(core, o)

	for core.ReadByte(ptr) != 0 {
		prop := propertyAt(core, ptr)
		if prop.Id == propertyId {
			return prop
		}
		ptr += 1 + uint32(prop.Length)
	}

	defaultAddr := uint32(objectTableBase) + 2*uint32(propertyId-1)
	return Property{
		Id:          propertyId,
		Length:      2,
		DataAddress: 0,
		Data:        core.ReadSlice(defaultAddr, defaultAddr+2),
	}
}

// GetPropertyAddr returns the byte address of propertyId's payload on obj,
// or 0 if obj doesn't have that property.
func GetPropertyAddr(core *zcore.Core, o *Object, propertyId uint8) uint16 {
	ptr := propertyTableStart(core, o)

	for core.ReadByte(ptr) != 0 {
		prop := propertyAt(core, ptr)
		if prop.Id == propertyId {
			return uint16(prop.DataAddress)
		}
		ptr += 1 + uint32(prop.Length)
	}

	return 0
}

// GetPropertyLength decodes the size byte immediately preceding a property
// payload address (the address GetPropertyAddr returns). addr == 0 returns
// 0, matching the "no such property" convention some story files rely on.
func GetPropertyLength(core *zcore.Core, payloadAddr uint32) uint16 {
	if payloadAddr == 0 {
		return 0
	}
	sizeByte := core.ReadByte(payloadAddr - 1)
	return uint16(sizeByte>>5) + 1
}

// GetNextProperty implements get_next_prop. propertyId == 0 asks for the
// first property on obj (0 if it has none); otherwise it returns the
// property following propertyId, or 0 if propertyId was last. Asking for a
// property obj does not have is fatal (Break) at the machine-core level -
// this function reports that by returning ok=false.
func GetNextProperty(core *zcore.Core, objectTableBase uint16, o *Object, propertyId uint8) (id uint8, ok bool) {
	ptr := propertyTableStart(core, o)

	if propertyId == 0 {
		if core.ReadByte(ptr) == 0 {
			return 0, true
		}
		return propertyAt(core, ptr).Id, true
	}

	for core.ReadByte(ptr) != 0 {
		prop := propertyAt(core, ptr)
		if prop.Id == propertyId {
			nextPtr := ptr + 1 + uint32(prop.Length)
			if core.ReadByte(nextPtr) == 0 {
				return 0, true
			}
			return propertyAt(core, nextPtr).Id, true
		}
		ptr += 1 + uint32(prop.Length)
	}

	return 0, false
}

// SetProperty overwrites propertyId's payload on obj in place. The
// property must already exist (put_prop on a missing property is a story
// bug, not something v3 defines recovery for) and must be 1 or 2 bytes -
// anything else indicates the property table was decoded incorrectly.
func SetProperty(core *zcore.Core, o *Object, propertyId uint8, value uint16) error {
	ptr := propertyTableStart(core, o)

	for core.ReadByte(ptr) != 0 {
		prop := propertyAt(core, ptr)
		if prop.Id == propertyId {
			switch prop.Length {
			case 1:
				core.WriteByte(prop.DataAddress, uint8(value))
			case 2:
				core.WriteWord(prop.DataAddress, value)
			default:
				return fmt.Errorf("zobject: property %d has invalid length %d", propertyId, prop.Length)
			}
			return nil
		}
		ptr += 1 + uint32(prop.Length)
	}

	return fmt.Errorf("zobject: object %d has no property %d", o.Id, propertyId)
}

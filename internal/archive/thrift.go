package archive

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Minimal Thrift compact-protocol reader, limited to the handful of field
// and container types the Parquet footer (FileMetaData/SchemaElement/
// RowGroup/ColumnMetaData) uses. Not a general Thrift codec.

const (
	tCompactStop        = 0x00
	tCompactBooleanTrue = 0x01
	tCompactBooleanFalse = 0x02
	tCompactByte        = 0x03
	tCompactI16         = 0x04
	tCompactI32         = 0x05
	tCompactI64         = 0x06
	tCompactDouble      = 0x07
	tCompactBinary      = 0x08
	tCompactList        = 0x09
	tCompactSet         = 0x0A
	tCompactMap         = 0x0B
	tCompactStruct      = 0x0C
)

type thriftReader struct {
	buf        []byte
	pos        int
	lastFieldID []int16
}

func newThriftReader(buf []byte) *thriftReader {
	return &thriftReader{buf: buf}
}

func (r *thriftReader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("thrift: unexpected end of buffer")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *thriftReader) readVarint() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("thrift: varint too long")
		}
	}
	return result, nil
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func (r *thriftReader) readI16() (int16, error) {
	v, err := r.readVarint()
	if err != nil {
		return 0, err
	}
	return int16(zigzagDecode(v)), nil
}

func (r *thriftReader) readI32() (int32, error) {
	v, err := r.readVarint()
	if err != nil {
		return 0, err
	}
	return int32(zigzagDecode(v)), nil
}

func (r *thriftReader) readI64() (int64, error) {
	v, err := r.readVarint()
	if err != nil {
		return 0, err
	}
	return zigzagDecode(v), nil
}

func (r *thriftReader) readDouble() (float64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("thrift: unexpected end of buffer reading double")
	}
	bits := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return math.Float64frombits(bits), nil
}

func (r *thriftReader) readBinary() ([]byte, error) {
	n, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, fmt.Errorf("thrift: unexpected end of buffer reading binary")
	}
	out := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}

func (r *thriftReader) readString() (string, error) {
	b, err := r.readBinary()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// thriftField is one decoded field header. typ == tCompactStop marks the
// end of the enclosing struct.
type thriftField struct {
	id  int16
	typ byte
}

func (r *thriftReader) structBegin() { r.lastFieldID = append(r.lastFieldID, 0) }

func (r *thriftReader) structEnd() { r.lastFieldID = r.lastFieldID[:len(r.lastFieldID)-1] }

func (r *thriftReader) readFieldBegin() (thriftField, error) {
	b, err := r.readByte()
	if err != nil {
		return thriftField{}, err
	}
	if b == tCompactStop {
		return thriftField{typ: tCompactStop}, nil
	}

	depth := len(r.lastFieldID) - 1
	delta := (b & 0xF0) >> 4
	typ := b & 0x0F

	var id int16
	if delta == 0 {
		id, err = r.readI16()
		if err != nil {
			return thriftField{}, err
		}
	} else {
		id = r.lastFieldID[depth] + int16(delta)
	}
	r.lastFieldID[depth] = id
	return thriftField{id: id, typ: typ}, nil
}

// listHeader reports the element type and length of a compact-protocol list
// or set.
func (r *thriftReader) listHeader() (elemType byte, size int, err error) {
	b, err := r.readByte()
	if err != nil {
		return 0, 0, err
	}
	sizeNibble := (b & 0xF0) >> 4
	elemType = b & 0x0F
	if sizeNibble == 0x0F {
		n, err := r.readVarint()
		if err != nil {
			return 0, 0, err
		}
		size = int(n)
	} else {
		size = int(sizeNibble)
	}
	return elemType, size, nil
}

// skip discards a value of the given compact-protocol type, needed to move
// past fields this reader doesn't otherwise interpret.
func (r *thriftReader) skip(typ byte) error {
	switch typ {
	case tCompactBooleanTrue, tCompactBooleanFalse:
		return nil
	case tCompactByte:
		_, err := r.readByte()
		return err
	case tCompactI16, tCompactI32, tCompactI64:
		_, err := r.readVarint()
		return err
	case tCompactDouble:
		_, err := r.readDouble()
		return err
	case tCompactBinary:
		_, err := r.readBinary()
		return err
	case tCompactStruct:
		r.structBegin()
		for {
			f, err := r.readFieldBegin()
			if err != nil {
				return err
			}
			if f.typ == tCompactStop {
				break
			}
			if err := r.skip(f.typ); err != nil {
				return err
			}
		}
		r.structEnd()
		return nil
	case tCompactList, tCompactSet:
		elemType, size, err := r.listHeader()
		if err != nil {
			return err
		}
		for i := 0; i < size; i++ {
			if err := r.skip(elemType); err != nil {
				return err
			}
		}
		return nil
	case tCompactMap:
		n, err := r.readVarint()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		kv, err := r.readByte()
		if err != nil {
			return err
		}
		keyType := (kv & 0xF0) >> 4
		valType := kv & 0x0F
		for i := 0; i < int(n); i++ {
			if err := r.skip(keyType); err != nil {
				return err
			}
			if err := r.skip(valType); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("thrift: unknown type %d", typ)
	}
}

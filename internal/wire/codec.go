package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/tuannm99/reldb/internal/typesystem"
)

const headerSize = 16

func msToTime(ms float64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}

// Row is one output row in layout column order, the shape the executor's
// binary sink consumes straight from an exec.Record's Vals.
type Row []typesystem.Value

// Encode renders rows into a header + fixed row block + variable region
// buffer per spec.md §6.1. Identical string/bytes/jsonb payloads are
// interned so the variable region holds each distinct value once.
func Encode(rows []Row, layout *Layout) ([]byte, error) {
	fixed := make([]byte, len(rows)*int(layout.RowStride))
	var varRegion []byte
	interned := make(map[string]struct{ off, ln uint32 })

	internBytes := func(b []byte) (uint32, uint32) {
		key := string(b)
		if len(b) == 0 {
			return 0, 0
		}
		if loc, ok := interned[key]; ok {
			return loc.off, loc.ln
		}
		off := uint32(len(varRegion))
		varRegion = append(varRegion, b...)
		ln := uint32(len(b))
		interned[key] = struct{ off, ln uint32 }{off, ln}
		return off, ln
	}

	for ri, row := range rows {
		if len(row) != len(layout.Columns) {
			return nil, fmt.Errorf("wire: row %d has %d values, layout wants %d", ri, len(row), len(layout.Columns))
		}
		rowBase := ri * int(layout.RowStride)
		nullMask := fixed[rowBase : rowBase+int(layout.NullMaskSize)]
		for ci, col := range layout.Columns {
			v := row[ci]
			slot := fixed[rowBase+int(col.Offset) : rowBase+int(col.Offset)+int(slotSize(col.Code))]
			if v.IsNull() {
				nullMask[ci/8] |= 1 << uint(ci%8)
				continue
			}
			if err := encodeValue(v, col.Code, slot, internBytes); err != nil {
				return nil, fmt.Errorf("wire: row %d col %q: %w", ri, col.Name, err)
			}
		}
	}

	varOffset := uint32(headerSize + len(fixed))
	buf := make([]byte, varOffset+uint32(len(varRegion)))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(rows)))
	binary.LittleEndian.PutUint32(buf[4:8], layout.RowStride)
	binary.LittleEndian.PutUint32(buf[8:12], varOffset)
	binary.LittleEndian.PutUint32(buf[12:16], 0)
	copy(buf[headerSize:], fixed)
	copy(buf[varOffset:], varRegion)
	return buf, nil
}

func encodeValue(v typesystem.Value, code TypeCode, slot []byte, intern func([]byte) (uint32, uint32)) error {
	switch code {
	case CodeBool:
		if v.Bool {
			slot[0] = 1
		} else {
			slot[0] = 0
		}
	case CodeInt32:
		binary.LittleEndian.PutUint32(slot, uint32(v.I32))
	case CodeInt64:
		// exchanged as the f64 equivalent (spec.md §6.1): round-trips exactly
		// as a bit pattern even though integers beyond 2^53 lose precision.
		binary.LittleEndian.PutUint64(slot, math.Float64bits(float64(v.I64)))
	case CodeFloat64:
		binary.LittleEndian.PutUint64(slot, math.Float64bits(v.F64))
	case CodeDateTime:
		ms := float64(v.Time.UnixMilli())
		binary.LittleEndian.PutUint64(slot, math.Float64bits(ms))
	case CodeString:
		off, ln := intern([]byte(v.Str))
		binary.LittleEndian.PutUint32(slot[0:4], off)
		binary.LittleEndian.PutUint32(slot[4:8], ln)
	case CodeBytes:
		off, ln := intern(v.Bytes)
		binary.LittleEndian.PutUint32(slot[0:4], off)
		binary.LittleEndian.PutUint32(slot[4:8], ln)
	case CodeJsonb:
		off, ln := intern([]byte(v.Json.CanonicalString()))
		binary.LittleEndian.PutUint32(slot[0:4], off)
		binary.LittleEndian.PutUint32(slot[4:8], ln)
	default:
		return fmt.Errorf("unhandled wire type code %d", code)
	}
	return nil
}

// Decode reverses Encode given the same layout.
func Decode(buf []byte, layout *Layout) ([]Row, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("wire: buffer shorter than header")
	}
	rowCount := binary.LittleEndian.Uint32(buf[0:4])
	rowStride := binary.LittleEndian.Uint32(buf[4:8])
	varOffset := binary.LittleEndian.Uint32(buf[8:12])
	if rowStride != layout.RowStride {
		return nil, fmt.Errorf("wire: row_stride %d does not match layout %d", rowStride, layout.RowStride)
	}
	varRegion := buf[varOffset:]

	rows := make([]Row, rowCount)
	for ri := uint32(0); ri < rowCount; ri++ {
		rowBase := headerSize + int(ri*rowStride)
		nullMask := buf[rowBase : rowBase+int(layout.NullMaskSize)]
		row := make(Row, len(layout.Columns))
		for ci, col := range layout.Columns {
			if nullMask[ci/8]&(1<<uint(ci%8)) != 0 {
				row[ci] = typesystem.NewNull()
				continue
			}
			slot := buf[rowBase+int(col.Offset) : rowBase+int(col.Offset)+int(slotSize(col.Code))]
			v, err := decodeValue(col.Code, slot, varRegion)
			if err != nil {
				return nil, fmt.Errorf("wire: row %d col %q: %w", ri, col.Name, err)
			}
			row[ci] = v
		}
		rows[ri] = row
	}
	return rows, nil
}

func decodeValue(code TypeCode, slot, varRegion []byte) (typesystem.Value, error) {
	switch code {
	case CodeBool:
		return typesystem.NewBool(slot[0] != 0), nil
	case CodeInt32:
		return typesystem.NewInt32(int32(binary.LittleEndian.Uint32(slot))), nil
	case CodeInt64:
		f := math.Float64frombits(binary.LittleEndian.Uint64(slot))
		return typesystem.NewInt64(int64(f)), nil
	case CodeFloat64:
		return typesystem.NewFloat64(math.Float64frombits(binary.LittleEndian.Uint64(slot))), nil
	case CodeDateTime:
		ms := math.Float64frombits(binary.LittleEndian.Uint64(slot))
		return typesystem.NewDateTime(msToTime(ms)), nil
	case CodeString:
		off := binary.LittleEndian.Uint32(slot[0:4])
		ln := binary.LittleEndian.Uint32(slot[4:8])
		return typesystem.NewString(string(varRegion[off : off+ln])), nil
	case CodeBytes:
		off := binary.LittleEndian.Uint32(slot[0:4])
		ln := binary.LittleEndian.Uint32(slot[4:8])
		b := make([]byte, ln)
		copy(b, varRegion[off:off+ln])
		return typesystem.NewBytes(b), nil
	case CodeJsonb:
		off := binary.LittleEndian.Uint32(slot[0:4])
		ln := binary.LittleEndian.Uint32(slot[4:8])
		if ln == 0 {
			return typesystem.NewNull(), nil
		}
		j, err := typesystem.ParseJSON(varRegion[off : off+ln])
		if err != nil {
			return typesystem.Value{}, err
		}
		return typesystem.NewJsonb(j), nil
	default:
		return typesystem.Value{}, fmt.Errorf("unhandled wire type code %d", code)
	}
}

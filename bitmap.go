package lame

import (
	"encoding/binary"
	"fmt"
	"os"
)

// GPRRange is one (start_rva, end_rva) record from a .gprdump artifact:
// an instruction range touching only general-purpose registers. end_rva
// is exclusive.
type GPRRange struct {
	StartRVA uint64
	EndRVA   uint64
}

// gprDumpRecordSize is the artifact's fixed record size: two little
// endian u64s, no header.
const gprDumpRecordSize = 16

// LoadGPRDump parses a .gprdump artifact: a sequence of 16-byte records,
// each two little-endian u64s, with no header.
func LoadGPRDump(path string) ([]GPRRange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lame: reading gprdump %s: %w", path, err)
	}
	if len(data)%gprDumpRecordSize != 0 {
		return nil, fmt.Errorf("lame: gprdump %s has trailing %d bytes, not a multiple of %d", path, len(data)%gprDumpRecordSize, gprDumpRecordSize)
	}
	ranges := make([]GPRRange, 0, len(data)/gprDumpRecordSize)
	for off := 0; off < len(data); off += gprDumpRecordSize {
		start := binary.LittleEndian.Uint64(data[off:])
		end := binary.LittleEndian.Uint64(data[off+8:])
		if end < start {
			return nil, fmt.Errorf("lame: gprdump %s: record at offset %d has end < start", path, off)
		}
		ranges = append(ranges, GPRRange{StartRVA: start, EndRVA: end})
	}
	return ranges, nil
}

// CodeRangeBitmap is the read-only, AOT-produced mapping from text
// address to "needs extended-state save?". It is shared across workers
// and never mutated after NewCodeRangeBitmap returns.
type CodeRangeBitmap struct {
	base      uint64 // main text mapping base, RVAs are relative to this
	end       uint64 // base + mapped size
	pgszShift uint
	bits      []byte // one byte per region; 1 == needs xsave, 0 == GP-only
	enabled   bool
}

// DisabledCodeRangeBitmap returns a bitmap that always reports
// NeedsXSave == true, equivalent to a negative lame_bitmap_pgsz_factor.
func DisabledCodeRangeBitmap() *CodeRangeBitmap {
	return &CodeRangeBitmap{enabled: false}
}

// NewCodeRangeBitmap builds a bitmap covering [textBase, textBase+textSize)
// at a region size of 2^pgszFactor bytes, clearing the bit for every RVA
// covered by ranges (converted to absolute addresses via textBase).
// pgszFactor < 0 yields a disabled bitmap.
func NewCodeRangeBitmap(textBase, textSize uint64, pgszFactor int, ranges []GPRRange) (*CodeRangeBitmap, error) {
	if pgszFactor < 0 {
		return DisabledCodeRangeBitmap(), nil
	}
	if textSize == 0 {
		return nil, fmt.Errorf("%w: zero-sized text mapping", ErrInvalidArgument)
	}
	shift := uint(pgszFactor)
	regionSize := uint64(1) << shift
	numRegions := (textSize + regionSize - 1) / regionSize
	bm := &CodeRangeBitmap{
		base:      textBase,
		end:       textBase + textSize,
		pgszShift: shift,
		bits:      make([]byte, numRegions),
		enabled:   true,
	}
	for i := range bm.bits {
		bm.bits[i] = 1 // conservative default: needs extended state
	}
	for _, r := range ranges {
		startAddr := textBase + r.StartRVA
		endAddr := textBase + r.EndRVA
		if startAddr < bm.base || endAddr > bm.end {
			continue // out-of-range records are ignored, not fatal
		}
		startRegion := (startAddr - bm.base) >> shift
		endRegion := (endAddr - 1 - bm.base) >> shift
		for i := startRegion; i <= endRegion && i < uint64(len(bm.bits)); i++ {
			bm.bits[i] = 0
		}
	}
	return bm, nil
}

// NeedsXSave reports whether code at rip may touch extended (vector)
// registers, so the switch policy must preserve extended state across a
// switch originating there. A disabled bitmap, or any rip outside the
// mapped range, conservatively reports true.
func (bm *CodeRangeBitmap) NeedsXSave(rip uint64) bool {
	if bm == nil || !bm.enabled {
		return true
	}
	if rip < bm.base || rip >= bm.end {
		return true
	}
	region := (rip - bm.base) >> bm.pgszShift
	if region >= uint64(len(bm.bits)) {
		return true
	}
	return bm.bits[region] != 0
}

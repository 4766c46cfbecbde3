package rolling

import (
	"encoding/binary"
	"fmt"
)

// Header wire format (little-endian), grounded in the teacher's
// pkg/heap header layout (magic uint32 + version uint16 + fixed
// fields) and pkg/wal/entry.go's fixed-size Encode/Decode style:
//
//	magic      uint32  (4 bytes)
//	version    uint8   (1 byte)
//	max_length int64   (8 bytes; <=0 means unbounded)
//	entries... (variable, to EOF)
//
// Each entry is a 1-byte tag followed by its payload:
//
//	NewSubSegment (tag 1): start_offset int64 (8) + name_len uint32 (4) + name bytes
//	ConcatBegin   (tag 2): entry_count uint32 (4) + base_offset int64 (8), followed
//	                       immediately by a full nested header (its own
//	                       13-byte magic/version/policy prefix, then
//	                       exactly entry_count entries at this same
//	                       syntactic level) whose entries are rebased
//	                       by base_offset.
//
// Nesting ConcatBegin's payload under a repeated copy of the 13-byte
// prefix, bounded by an explicit entry_count, is what keeps the format
// self-delimiting at every recursion depth: a concatenated-then-
// concatenated-again segment's header still parses unambiguously,
// because each level knows exactly how many of its own entries to
// consume before returning control to its parent. The spec text
// describes both "append the raw header bytes of the source" (§6) and
// "ConcatBegin consumes the next k entries" (§4.2); encoding entry
// counts per nesting level satisfies both readings at once.
const (
	headerMagic   uint32 = 0x524F4C4C // "ROLL"
	headerVersion uint8  = 1

	prefixSize = 4 + 1 + 8 // magic + version + max_length

	tagNewSubSegment byte = 1
	tagConcatBegin   byte = 2
)

// SerializeEmptyHeader returns the full serialized header for a
// freshly created segment: just the magic/version/policy prefix, no
// entries yet.
func SerializeEmptyHeader(policy RollingPolicy) []byte {
	buf := make([]byte, prefixSize)
	writePrefix(buf, policy)
	return buf
}

func writePrefix(buf []byte, policy RollingPolicy) {
	binary.LittleEndian.PutUint32(buf[0:4], headerMagic)
	buf[4] = headerVersion
	binary.LittleEndian.PutUint64(buf[5:13], uint64(policy.MaxSubSegmentLength))
}

// SerializeNewSubSegmentEntry encodes a NewSubSegment entry.
func SerializeNewSubSegmentEntry(startOffset int64, name string) []byte {
	buf := make([]byte, 1+8+4+len(name))
	buf[0] = tagNewSubSegment
	binary.LittleEndian.PutUint64(buf[1:9], uint64(startOffset))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(len(name)))
	copy(buf[13:], name)
	return buf
}

// SerializeConcatBeginEntry encodes a ConcatBegin entry header (tag,
// entry_count, base_offset). The caller appends the nested header
// bytes (prefix + entryCount entries) immediately after this.
func SerializeConcatBeginEntry(entryCount uint32, baseOffset int64) []byte {
	buf := make([]byte, 1+4+8)
	buf[0] = tagConcatBegin
	binary.LittleEndian.PutUint32(buf[1:5], entryCount)
	binary.LittleEndian.PutUint64(buf[5:13], uint64(baseOffset))
	return buf
}

// ParseHeader parses a fully serialized header blob (prefix plus all
// entries applied so far) into its policy and flattened, rebased
// sub-segment list.
func ParseHeader(data []byte) (RollingPolicy, []SubSegment, error) {
	if len(data) < prefixSize {
		return RollingPolicy{}, nil, fmt.Errorf("rolling: header too short (%d bytes)", len(data))
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != headerMagic {
		return RollingPolicy{}, nil, fmt.Errorf("rolling: bad header magic %#x", magic)
	}
	version := data[4]
	if version != headerVersion {
		return RollingPolicy{}, nil, fmt.Errorf("rolling: unsupported header version %d", version)
	}
	maxLen := int64(binary.LittleEndian.Uint64(data[5:13]))
	policy := RollingPolicy{MaxSubSegmentLength: maxLen}

	entries, _, _, err := parseEntries(data, prefixSize, 0, -1)
	if err != nil {
		return RollingPolicy{}, nil, err
	}
	return policy, entries, nil
}

// countTopLevelEntries returns how many top-level entries follow the
// 13-byte prefix of a serialized header, without flattening nested
// ConcatBegin payloads. Used to compute the entry_count a handle must
// advertise if it later becomes a concat source.
func countTopLevelEntries(data []byte) (int, error) {
	if len(data) < prefixSize {
		return 0, fmt.Errorf("rolling: header too short (%d bytes)", len(data))
	}
	_, _, count, err := parseEntries(data, prefixSize, 0, -1)
	return count, err
}

// parseEntries reads entries starting at pos. If limit < 0, it reads
// until data is exhausted (top-level header). Otherwise it reads
// exactly limit entries (nested header embedded by a ConcatBegin).
// Every offset produced is shifted by base. The returned count is the
// number of *top-level* entries consumed at this nesting level (a
// ConcatBegin counts as one regardless of how many sub-segments its
// nested header flattens to).
func parseEntries(data []byte, pos int, base int64, limit int) ([]SubSegment, int, int, error) {
	var entries []SubSegment
	count := 0
	for {
		if limit >= 0 && count >= limit {
			break
		}
		if pos >= len(data) {
			if limit >= 0 {
				return nil, pos, 0, fmt.Errorf("rolling: truncated header, expected %d more entries", limit-count)
			}
			break
		}
		tag := data[pos]
		pos++
		switch tag {
		case tagNewSubSegment:
			if pos+8+4 > len(data) {
				return nil, pos, 0, fmt.Errorf("rolling: truncated NewSubSegment entry")
			}
			start := int64(binary.LittleEndian.Uint64(data[pos : pos+8]))
			pos += 8
			nameLen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
			pos += 4
			if pos+nameLen > len(data) {
				return nil, pos, 0, fmt.Errorf("rolling: truncated NewSubSegment name")
			}
			name := string(data[pos : pos+nameLen])
			pos += nameLen
			entries = append(entries, SubSegment{
				Name:        name,
				StartOffset: start + base,
				Exists:      true,
			})

		case tagConcatBegin:
			if pos+4+8 > len(data) {
				return nil, pos, 0, fmt.Errorf("rolling: truncated ConcatBegin entry")
			}
			entryCount := binary.LittleEndian.Uint32(data[pos : pos+4])
			pos += 4
			srcBase := int64(binary.LittleEndian.Uint64(data[pos : pos+8]))
			pos += 8

			if pos+prefixSize > len(data) {
				return nil, pos, 0, fmt.Errorf("rolling: truncated nested header")
			}
			nMagic := binary.LittleEndian.Uint32(data[pos : pos+4])
			if nMagic != headerMagic {
				return nil, pos, 0, fmt.Errorf("rolling: bad nested header magic %#x", nMagic)
			}
			if data[pos+4] != headerVersion {
				return nil, pos, 0, fmt.Errorf("rolling: unsupported nested header version %d", data[pos+4])
			}
			pos += prefixSize

			nested, newPos, _, err := parseEntries(data, pos, base+srcBase, int(entryCount))
			if err != nil {
				return nil, newPos, 0, err
			}
			pos = newPos
			entries = append(entries, nested...)

		default:
			return nil, pos, 0, fmt.Errorf("rolling: unknown header entry tag %d", tag)
		}
		count++
	}
	return entries, pos, count, nil
}

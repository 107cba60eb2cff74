package sourcemap

import (
	"fmt"
)

const (
	vlqBaseShift       = 5
	vlqBase            = 1 << vlqBaseShift
	vlqBaseMask        = vlqBase - 1
	vlqContinuationBit = vlqBase
)

var base64Values = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = int8(i)
	}
	return t
}()

// Segment is one decoded mapping segment. Columns are in UTF-16 code units,
// as written by the tools.
type Segment struct {
	GeneratedColumn int
	HasSource       bool
	SourceIndex     int
	SourceLine      int
	SourceColumn    int
}

// decodeMappings decodes a "mappings" string into per-generated-line segments.
func decodeMappings(mappings string, numSources int) ([][]Segment, error) {
	var (
		lines   [][]Segment
		current []Segment

		genCol    int
		srcIdx    int
		srcLine   int
		srcCol    int
		fields    [5]int
		numFields int
	)

	flushLine := func() {
		lines = append(lines, current)
		current = nil
		genCol = 0
	}

	i := 0
	for i <= len(mappings) {
		if i == len(mappings) {
			flushLine()
			break
		}
		switch mappings[i] {
		case ';':
			flushLine()
			i++
			continue
		case ',':
			i++
			continue
		}

		numFields = 0
		for i < len(mappings) && mappings[i] != ',' && mappings[i] != ';' {
			if numFields == len(fields) {
				return nil, fmt.Errorf("%w: segment with more than 5 fields at offset %d", ErrMalformed, i)
			}
			v, n, err := decodeVLQ(mappings[i:])
			if err != nil {
				return nil, fmt.Errorf("%w: offset %d: %v", ErrMalformed, i, err)
			}
			fields[numFields] = v
			numFields++
			i += n
		}

		// The fifth field indexes "names", which size attribution ignores.
		switch numFields {
		case 1, 4, 5:
		default:
			return nil, fmt.Errorf("%w: segment with %d fields", ErrMalformed, numFields)
		}

		genCol += fields[0]
		if genCol < 0 {
			return nil, fmt.Errorf("%w: negative generated column", ErrMalformed)
		}
		seg := Segment{GeneratedColumn: genCol}
		if numFields >= 4 {
			srcIdx += fields[1]
			srcLine += fields[2]
			srcCol += fields[3]
			if srcIdx < 0 || srcIdx >= numSources {
				return nil, fmt.Errorf("%w: source index %d out of range", ErrMalformed, srcIdx)
			}
			seg.HasSource = true
			seg.SourceIndex = srcIdx
			seg.SourceLine = srcLine
			seg.SourceColumn = srcCol
		}
		current = append(current, seg)
	}

	return lines, nil
}

// decodeVLQ decodes one base64 VLQ value and returns it with the number of
// characters consumed.
func decodeVLQ(s string) (int, int, error) {
	var (
		result int
		shift  uint
	)
	for i := 0; i < len(s); i++ {
		digit := base64Values[s[i]]
		if digit < 0 {
			return 0, 0, fmt.Errorf("invalid base64 character %q", s[i])
		}
		result += int(digit&vlqBaseMask) << shift
		if digit&vlqContinuationBit == 0 {
			negative := result&1 == 1
			result >>= 1
			if negative {
				result = -result
			}
			return result, i + 1, nil
		}
		shift += vlqBaseShift
		if shift > 60 {
			return 0, 0, fmt.Errorf("vlq value overflows")
		}
	}
	return 0, 0, fmt.Errorf("unterminated vlq value")
}

// Package sourcemap maps preprocessed output lines back to the files and
// lines they came from, as a Source Map v3 document.
//
// The preprocessor only moves whole lines, so every mapping points at
// column 0 of a generated line and column 0 of a source line. See
// https://sourcemaps.info/spec.html for the format.
package sourcemap

import (
	"errors"
	"strings"
)

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var errVLQ = errors.New("invalid VLQ encoding")

const (
	vlqShift    = 5
	vlqMask     = 1<<vlqShift - 1
	vlqContinue = 1 << vlqShift
)

// EncodeVLQ appends the base64 VLQ form of value to sb.
func EncodeVLQ(sb *strings.Builder, value int) {
	v := uint64(value) << 1
	if value < 0 {
		v = uint64(-value)<<1 | 1
	}
	for {
		digit := v & vlqMask
		v >>= vlqShift
		if v != 0 {
			digit |= vlqContinue
		}
		sb.WriteByte(base64Alphabet[digit])
		if v == 0 {
			return
		}
	}
}

// DecodeVLQ decodes one value from the front of s and returns it with the
// number of bytes consumed.
func DecodeVLQ(s string) (int, int, error) {
	var v uint64
	var shift uint
	for i := 0; i < len(s); i++ {
		digit := strings.IndexByte(base64Alphabet, s[i])
		if digit < 0 || shift > 60 {
			return 0, 0, errVLQ
		}
		v |= uint64(digit&vlqMask) << shift
		shift += vlqShift
		if digit&vlqContinue == 0 {
			n := int(v >> 1)
			if v&1 != 0 {
				n = -n
			}
			return n, i + 1, nil
		}
	}
	return 0, 0, errVLQ
}

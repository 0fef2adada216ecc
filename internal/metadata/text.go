package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Text flattens a tag value of any origin into its canonical text form.
// It is the single place where integers, byte strings and text meet.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return bytesText(val)
	case fmt.Stringer:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// bytesText renders valid UTF-8 as text with trailing NULs dropped and
// anything else as the b'...' style escape.
func bytesText(b []byte) string {
	trimmed := strings.TrimRight(string(b), "\x00")
	if utf8.ValidString(trimmed) && !strings.ContainsRune(trimmed, 0) {
		return trimmed
	}
	var sb strings.Builder
	sb.WriteString("b'")
	for _, c := range b {
		if c >= 0x20 && c < 0x7f && c != '\'' && c != '\\' {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "\\x%02x", c)
	}
	sb.WriteByte('\'')
	return sb.String()
}

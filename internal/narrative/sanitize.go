package narrative

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	ansiPattern = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\)?|[@-Z\\^_])`)

	// Bracketed control tokens some local models leak into their output.
	tokenPattern = regexp.MustCompile(`(?i)\[\s*/?\s*(?:INST|SYS|SYSTEM|end of text|eot|assistant)\s*\]`)
)

// Sanitize strips ANSI/terminal escape sequences, bracketed control tokens,
// and non-printable control characters from raw inference output. Newlines
// and tabs are preserved.
func Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := ansiPattern.ReplaceAllString(raw, "")
	cleaned = tokenPattern.ReplaceAllString(cleaned, "")
	var b strings.Builder
	b.Grow(len(cleaned))
	for _, r := range cleaned {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// maxCarry caps how far back SplitIncomplete looks for a dangling escape
// sequence or control-token opener.
const maxCarry = 64

// SplitIncomplete divides raw process output into a portion safe to sanitize
// now and a tail that may be the start of an escape sequence or bracketed
// control token cut off mid-read. The tail must be prepended to the next
// read before sanitizing, or a split sequence leaks through half-stripped.
func SplitIncomplete(data []byte) (emit, carry []byte) {
	start := 0
	if len(data) > maxCarry {
		start = len(data) - maxCarry
	}
	for i := len(data) - 1; i >= start; i-- {
		switch data[i] {
		case 0x1b:
			if escapeComplete(data[i:]) {
				return data, nil
			}
			return data[:i], data[i:]
		case '[':
			if i > 0 && data[i-1] == 0x1b {
				continue
			}
			if bytes.IndexByte(data[i+1:], ']') >= 0 {
				return data, nil
			}
			if tokenOpener(data[i:]) {
				return data[:i], data[i:]
			}
			return data, nil
		}
	}
	return data, nil
}

// escapeComplete reports whether seq, starting at ESC, contains the full
// sequence: a final byte for CSI, a terminator for OSC, or the single
// following byte otherwise.
func escapeComplete(seq []byte) bool {
	if len(seq) < 2 {
		return false
	}
	switch seq[1] {
	case '[':
		for _, b := range seq[2:] {
			if b >= '@' && b <= '~' {
				return true
			}
		}
		return false
	case ']':
		return bytes.IndexByte(seq, 0x07) >= 0 || bytes.Contains(seq, []byte{0x1b, '\\'})
	default:
		return true
	}
}

// tokenOpener reports whether seq, starting at an unclosed '[', could still
// grow into one of the bracketed control tokens.
func tokenOpener(seq []byte) bool {
	for _, b := range seq[1:] {
		switch {
		case b == '/' || b == ' ' || b == '\t':
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		default:
			return false
		}
	}
	return true
}

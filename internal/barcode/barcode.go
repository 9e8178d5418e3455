package barcode

import (
	"errors"
	"strings"
)

// Symbology identifies the barcode family a scanner reported for a symbol.
type Symbology string

const (
	SymbologyEAN13   Symbology = "EAN13"
	SymbologyEAN8    Symbology = "EAN8"
	SymbologyUPCE    Symbology = "UPCE"
	SymbologyCode128 Symbology = "CODE128"
	SymbologyQR      Symbology = "QR"
	SymbologyUnknown Symbology = "UNKNOWN"
)

// Symbol is one machine-readable code detected within a frame.
type Symbol struct {
	Type    Symbology
	Payload string
}

// Frame is everything the capture output reported for a single pass.
// Most frames carry zero symbols.
type Frame struct {
	Symbols []Symbol
}

// Identifier is a validated EAN-13 or EAN-8 code, digits only.
type Identifier string

func (id Identifier) String() string { return string(id) }

var ErrInvalidIdentifier = errors.New("invalid identifier")

var lengths = map[Symbology]int{
	SymbologyEAN13: 13,
	SymbologyEAN8:  8,
}

// Supported returns the symbologies a capture output must be configured for.
func Supported() []Symbology {
	return []Symbology{SymbologyEAN13, SymbologyEAN8}
}

// Decode returns the first symbol in frame that is a recognised linear code with a
// valid check digit. A false result is the normal outcome while scanning.
func Decode(frame Frame) (Identifier, bool) {
	for _, sym := range frame.Symbols {
		want, ok := lengths[sym.Type]
		if !ok {
			continue
		}
		payload := strings.TrimSpace(sym.Payload)
		if len(payload) != want || !validChecksum(payload) {
			continue
		}
		return Identifier(payload), true
	}
	return "", false
}

// ParseIdentifier validates a typed code. Hyphens and spaces are ignored.
func ParseIdentifier(s string) (Identifier, error) {
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	if len(s) != 13 && len(s) != 8 {
		return "", ErrInvalidIdentifier
	}
	if !validChecksum(s) {
		return "", ErrInvalidIdentifier
	}
	return Identifier(s), nil
}

// validChecksum applies the GS1 mod-10 rule: weights alternate 3,1 from the
// rightmost data digit.
func validChecksum(code string) bool {
	sum := 0
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c < '0' || c > '9' {
			return false
		}
		if i == len(code)-1 {
			break
		}
		d := int(c - '0')
		if (len(code)-2-i)%2 == 0 {
			d *= 3
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return int(code[len(code)-1]-'0') == check
}

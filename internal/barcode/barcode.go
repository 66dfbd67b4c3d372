// Package barcode provides detection, validation, and normalization of
// retail barcode formats ahead of product lookups. Scanner input arrives
// with inconsistent separators and mixed UPC/EAN forms; lookups key on
// the normalized EAN-13 representation wherever one exists.
package barcode

import (
	"strings"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
)

// Format identifies a supported barcode symbology.
type Format string

const (
	FormatEAN13   Format = "ean13"
	FormatUPCA    Format = "upca"
	FormatEAN8    Format = "ean8"
	FormatUnknown Format = "unknown"
)

// Detect returns the format of code based on digit count after
// separator stripping. Detection does not verify the check digit;
// use Validate for that.
func Detect(code string) Format {
	digits := stripSeparators(code)
	if !isDigits(digits) {
		return FormatUnknown
	}

	switch len(digits) {
	case 13:
		return FormatEAN13
	case 12:
		return FormatUPCA
	case 8:
		return FormatEAN8
	default:
		return FormatUnknown
	}
}

// Validate checks that code is a supported format with a correct
// check digit.
func Validate(code string) error {
	digits := stripSeparators(code)

	format := Detect(digits)
	if format == FormatUnknown {
		return errors.New(errors.ErrBarcodeUnsupported, "unsupported barcode format: "+code)
	}

	if !hasValidCheckDigit(digits) {
		return errors.New(errors.ErrBarcodeInvalid, "check digit mismatch: "+code)
	}
	return nil
}

// Normalize strips separators and converts UPC-A codes to their
// 13-digit EAN form (leading zero; the check digit is unchanged).
// EAN-8 codes keep their 8-digit form. The result is validated.
func Normalize(code string) (string, error) {
	digits := stripSeparators(code)
	if err := Validate(digits); err != nil {
		return "", err
	}

	if Detect(digits) == FormatUPCA {
		digits = "0" + digits
	}
	return digits, nil
}

// stripSeparators removes the spacing and hyphens scanners and humans
// insert into printed codes.
func stripSeparators(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range code {
		switch r {
		case ' ', '-', '\t':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// hasValidCheckDigit verifies the GS1 modulo-10 check digit. Weights
// alternate 3,1,3,... over the payload counted from the rightmost
// payload digit, which makes one routine cover EAN-13, UPC-A and EAN-8.
func hasValidCheckDigit(digits string) bool {
	n := len(digits)
	if n < 2 {
		return false
	}

	sum := 0
	weight := 3
	for i := n - 2; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		if weight == 3 {
			weight = 1
		} else {
			weight = 3
		}
	}

	check := (10 - sum%10) % 10
	return check == int(digits[n-1]-'0')
}

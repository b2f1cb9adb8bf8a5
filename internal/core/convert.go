package core

// convert.go turns user-provided cell text into typed values. Spreadsheet
// exports are messy: currency symbols, thousands separators, accounting
// negatives "(123.45)" and Excel formula wrappers ="..." all show up.

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericRegex matches integers, decimals and scientific notation after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var errInvalidNumber = errors.New("invalid number")

// ParseNumber parses s as a decimal number. It accepts "$1,200.50",
// "€99", "(42)" for -42 and ="7".
func ParseNumber(s string) (decimal.Decimal, error) {
	s = CleanCell(s)
	if s == "" {
		return decimal.Decimal{}, errInvalidNumber
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Decimal{}, errInvalidNumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errInvalidNumber
	}
	return d, nil
}

// CleanCell trims whitespace and unwraps an Excel formula prefix (="...").
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}

package counting

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies message content.
type Kind int

const (
	// KindNumber is a well-formed integer.
	KindNumber Kind = iota
	// KindLeadingZero is digits with a leading zero, such as "007".
	KindLeadingZero
	// KindNonNumeric is anything else, including out-of-range integers.
	KindNonNumeric
)

var countPattern = regexp.MustCompile(`^-?\d+$`)

// Parsed is the result of Parse. Value is only meaningful when HasValue is set.
type Parsed struct {
	Kind     Kind
	Value    int64
	HasValue bool
	// Numeric is true when the content has the shape of an integer.
	Numeric bool
}

// Parse applies the strict count format. Content is not trimmed; surrounding
// whitespace makes a message non-numeric.
func Parse(content string) Parsed {
	if !countPattern.MatchString(content) {
		return Parsed{Kind: KindNonNumeric}
	}

	p := Parsed{Kind: KindNumber, Numeric: true}
	v, err := strconv.ParseInt(content, 10, 64)
	if err == nil {
		p.Value = v
		p.HasValue = true
	}

	digits := strings.TrimPrefix(content, "-")
	switch {
	case len(digits) > 1 && digits[0] == '0':
		p.Kind = KindLeadingZero
	case err != nil:
		p.Kind = KindNonNumeric
	}
	return p
}

package counting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		kind     Kind
		value    int64
		hasValue bool
	}{
		{"0", KindNumber, 0, true},
		{"42", KindNumber, 42, true},
		{"-17", KindNumber, -17, true},
		{"-0", KindNumber, 0, true},
		{"007", KindLeadingZero, 7, true},
		{"-007", KindLeadingZero, -7, true},
		{"00", KindLeadingZero, 0, true},
		{" 5", KindNonNumeric, 0, false},
		{"5 ", KindNonNumeric, 0, false},
		{"+5", KindNonNumeric, 0, false},
		{"5.0", KindNonNumeric, 0, false},
		{"five", KindNonNumeric, 0, false},
		{"", KindNonNumeric, 0, false},
		{"-", KindNonNumeric, 0, false},
		{"99999999999999999999", KindNonNumeric, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := Parse(tt.in)
			assert.Equal(t, tt.kind, p.Kind)
			assert.Equal(t, tt.hasValue, p.HasValue)
			if tt.hasValue {
				assert.Equal(t, tt.value, p.Value)
			}
		})
	}
}

func TestParseMarksNumericShape(t *testing.T) {
	assert.True(t, Parse("99999999999999999999").Numeric)
	assert.True(t, Parse("007").Numeric)
	assert.False(t, Parse("7a").Numeric)
}

package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$1,234.56", FormatUSD(1234.56))
	assert.Equal(t, "$0.00", FormatUSD(0))
	assert.Equal(t, "-$42.50", FormatUSD(-42.5))
	// Rounds half away from zero at the cent
	assert.Equal(t, "$0.13", FormatUSD(0.125))
}

func TestFormatPrice_CentAndAbove(t *testing.T) {
	assert.Equal(t, "$67,123.45", FormatPrice(67123.45))
	assert.Equal(t, "$0.01", FormatPrice(0.01))
	assert.Equal(t, "$0.00", FormatPrice(0))
}

func TestFormatPrice_SubCent(t *testing.T) {
	assert.Equal(t, "$0.004200", FormatPrice(0.0042))
	assert.Equal(t, "$0.00000723", FormatPrice(0.00000723))
}

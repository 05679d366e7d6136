package typeinfo

import (
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// DecimalContext governs decimal arithmetic: 34 significant digits,
// half-even rounding.
var DecimalContext = apd.BaseContext.WithPrecision(34)

var truncatingContext = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundDown
	return c
}()

func DecimalFromInt(i int64) apd.Decimal {
	return *apd.New(i, 0)
}

func DecimalFromUint(u uint64) apd.Decimal {
	d, _, _ := apd.NewFromString(strconv.FormatUint(u, 10))
	return *d
}

func DecimalFromFloat(f float64) (apd.Decimal, error) {
	var d apd.Decimal
	_, err := d.SetFloat64(f)
	return d, err
}

// DecimalToInt truncates d towards zero.
func DecimalToInt(d apd.Decimal) (int64, error) {
	var r apd.Decimal
	if _, err := truncatingContext.Quantize(&r, &d, 0); err != nil {
		return 0, err
	}
	return r.Int64()
}

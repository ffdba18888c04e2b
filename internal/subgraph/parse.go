package subgraph

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// parseDecimal converts a BigDecimal string into a float64.
func parseDecimal(field, value string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("%w: %s is empty", ErrMalformedResponse, field)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrMalformedResponse, field, value, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// parseBlockNumber converts a BigInt string into a block number.
func parseBlockNumber(value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: block number %q: %v", ErrMalformedResponse, value, err)
	}
	return n, nil
}

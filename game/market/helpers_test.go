package market_test

import (
	"errors"
	"strconv"
)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func assertIsOneOf(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

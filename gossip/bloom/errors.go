package bloom

import "errors"

var (
	errTooShort  = errors.New("bloom: frame shorter than header")
	errBadLength = errors.New("bloom: bit-field length does not match header")
)

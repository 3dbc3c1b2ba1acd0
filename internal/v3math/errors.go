package v3math

import "errors"

var (
	ErrTickOutOfRange      = errors.New("tick out of range")
	ErrSqrtPriceOutOfRange = errors.New("sqrt price out of range")
	ErrDegenerateRange     = errors.New("degenerate price range")
	ErrInvalidSwapState    = errors.New("invalid swap state")
	ErrUnknownFeeTier      = errors.New("unknown fee tier")
	ErrInvalidPriceRange   = errors.New("invalid price range")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidPrice        = errors.New("invalid price")
)

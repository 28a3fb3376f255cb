package salesyncerrors

import "errors"

var (
	ErrNotReady         = errors.New("sale state is still loading")
	ErrPurchaseInFlight = errors.New("a purchase is already in flight")
	ErrWrongNetwork     = errors.New("wallet is connected to a different network")
	ErrInvalidLimit     = errors.New("leaderboard limit must be positive")
)

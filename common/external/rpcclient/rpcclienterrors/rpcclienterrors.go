package rpcclienterrors

import "errors"

var ErrEmptyReturnData = errors.New("contract call returned no data")
var ErrUnexpectedReturnType = errors.New("unexpected contract return type")
var ErrNonPositiveQuote = errors.New("router returned non-positive quote")
var ErrInvalidLeaderboardCount = errors.New("leaderboard count must be positive")
var ErrUnknownDimension = errors.New("unknown leaderboard dimension")
var ErrMismatchedLeaderboard = errors.New("leaderboard addresses and values differ in length")

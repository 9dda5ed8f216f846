package usecase

import "errors"

var (
	errInvalidTrade = errors.New("invalid trade")
	errInvalidEvent = errors.New("invalid adjustment event")
)

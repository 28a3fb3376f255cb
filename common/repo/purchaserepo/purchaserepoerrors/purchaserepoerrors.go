package purchaserepoerrors

import "errors"

var (
	ErrUnableToCreatePurchase = errors.New("unable to create purchase")
	ErrUnableToUpdatePurchase = errors.New("unable to update purchase")
	ErrPurchaseNotFound       = errors.New("purchase not found")
	ErrUnableToPublish        = errors.New("unable to publish purchase event")
)

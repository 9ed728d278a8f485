package bargain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("not authorized for this room")
	ErrRoomNotActive   = errors.New("room is no longer active")
	ErrExpired         = errors.New("bargain has expired")
	ErrInvalidOwner    = errors.New("product does not belong to seller")
	ErrInvalidArgument = errors.New("invalid argument")
)

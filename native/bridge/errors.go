package bridge

import (
	"errors"

	"lanebridge/native/common"
)

var (
	// ErrBadOrigin is returned when the caller is not the expected account.
	ErrBadOrigin = common.ErrBadOrigin

	ErrBackingAccountNone   = errors.New("bridge: remote backing account not configured")
	ErrRingDailyLimited     = errors.New("bridge: security limit reached")
	ErrTooManyNonces        = errors.New("bridge: received nonce window full")
	ErrInsufficientBalance  = errors.New("bridge: insufficient balance")
	ErrFailureInfoNE        = errors.New("bridge: no pending transfer for nonce")
	ErrNonceDuplicated      = errors.New("bridge: pending transfer already recorded")
	ErrMessageAlreadyIssued = errors.New("bridge: message already issued")
	ErrMessageNotDelivered  = errors.New("bridge: message not delivered")
	ErrEvmEncodeFailed      = errors.New("bridge: remote call encoding failed")
	ErrInvalidAmount        = errors.New("bridge: amount must not be negative")
	ErrInvalidRecipient     = errors.New("bridge: recipient must be 20 bytes")
)

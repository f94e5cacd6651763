package errors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrContentNotFound    = errors.New("content not found")
	ErrRequestNotFound    = errors.New("purchase request not found")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrNotOwnerEligible   = errors.New("requester already owns this content")
	ErrDuplicateRequest   = errors.New("pending request already exists for this content")
	ErrForbidden          = errors.New("forbidden")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrTransferFailed     = errors.New("transfer failed, no changes applied")
	ErrAlreadyCheckedIn   = errors.New("already checked in today")
	ErrNoSpinsRemaining   = errors.New("no spins remaining")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrRequestLocked      = errors.New("request is being processed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
)

package bank

import "errors"

// Service-level sentinels. Engine invariants (funds, limits, claims)
// surface as ledger package errors; these cover everything the services
// check before an operation reaches the engine.
var (
	// Billers
	ErrUnknownBiller        = errors.New("unknown biller")
	ErrInvalidAccountNumber = errors.New("account number does not match biller format")

	// Signup / auth
	ErrInvalidUsername = errors.New("username must be 3-20 characters, letters/digits/underscore")
	ErrInvalidPIN      = errors.New("PIN must be 4-6 digits")
	ErrWrongPIN        = errors.New("incorrect PIN")

	// Money requests
	ErrSelfRequest       = errors.New("cannot request money from yourself")
	ErrNotYourRequest    = errors.New("request is not addressed to this account")
	ErrRequestNotPending = errors.New("request already settled")

	// Scheduled transfers
	ErrInvalidFrequency = errors.New("frequency must be daily, weekly or monthly")
	ErrInvalidStartDate = errors.New("start date must be YYYY-MM-DD")
	ErrNotOwner         = errors.New("scheduled transfer belongs to another account")

	// Birthday gift
	ErrNotBirthday = errors.New("birthday gift is only claimable on the birthday")

	// OTP
	ErrChallengeNotFound = errors.New("no pending confirmation with that id")
	ErrCodeMismatch      = errors.New("confirmation code does not match")
	ErrCodeExpired       = errors.New("confirmation code expired")
)

package auth

import "errors"

// Token failure taxonomy. None of these leave the token core as hard failures;
// callers collapse them into "not authenticated".
var (
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrTokenMalformed   = errors.New("token malformed")
	ErrClaimsMalformed  = errors.New("claims malformed")
	ErrTokenExpired     = errors.New("token expired")
	ErrSubjectMismatch  = errors.New("token subject mismatch")
	ErrKindMismatch     = errors.New("token kind mismatch")
)

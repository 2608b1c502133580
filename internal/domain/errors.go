package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// Code is a machine-readable ledger error code.
type Code string

const (
	CodeInvalidAmount    Code = "INVALID_AMOUNT"
	CodeInvalidDeadline  Code = "INVALID_DEADLINE"
	CodeCampaignEnded    Code = "CAMPAIGN_ENDED"
	CodeCampaignNotEnded Code = "CAMPAIGN_NOT_ENDED"
	CodeGoalNotReached   Code = "GOAL_NOT_REACHED"
	CodeAlreadyWithdrawn Code = "ALREADY_WITHDRAWN"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodeSelfContribution Code = "SELF_CONTRIBUTION"
	CodeExitNotAllowed   Code = "EXIT_NOT_ALLOWED"
	CodeDuplicateCommand Code = "DUPLICATE_COMMAND"
	CodeInvalidSignature Code = "INVALID_SIGNATURE"
	CodeInvalidCommand   Code = "INVALID_COMMAND"
)

// LedgerError is a rejected transition. Two LedgerErrors match under
// errors.Is when their codes are equal.
type LedgerError struct {
	Code    Code
	Message string
}

func (e LedgerError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e LedgerError) Is(target error) bool {
	switch t := target.(type) {
	case LedgerError:
		return t.Code == e.Code
	case *LedgerError:
		return t != nil && t.Code == e.Code
	}
	return false
}

// Reject returns a LedgerError with a formatted message.
func Reject(code Code, format string, args ...any) LedgerError {
	return LedgerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidAmount    = LedgerError{Code: CodeInvalidAmount}
	ErrInvalidDeadline  = LedgerError{Code: CodeInvalidDeadline}
	ErrCampaignEnded    = LedgerError{Code: CodeCampaignEnded}
	ErrCampaignNotEnded = LedgerError{Code: CodeCampaignNotEnded}
	ErrGoalNotReached   = LedgerError{Code: CodeGoalNotReached}
	ErrAlreadyWithdrawn = LedgerError{Code: CodeAlreadyWithdrawn}
	ErrUnauthorized     = LedgerError{Code: CodeUnauthorized}
	ErrAlreadyExists    = LedgerError{Code: CodeAlreadyExists}
	ErrSelfContribution = LedgerError{Code: CodeSelfContribution}
	ErrExitNotAllowed   = LedgerError{Code: CodeExitNotAllowed}
	ErrDuplicateCommand = LedgerError{Code: CodeDuplicateCommand}
	ErrInvalidSignature = LedgerError{Code: CodeInvalidSignature}
	ErrInvalidCommand   = LedgerError{Code: CodeInvalidCommand}
)

package werror

import (
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCode_ConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCode_SigningRejected    ErrorCode = "SIGNING_REJECTED"
	ErrCode_NetworkError       ErrorCode = "NETWORK_ERROR"
	ErrCode_StorageError       ErrorCode = "STORAGE_ERROR"
	ErrCode_ValidationError    ErrorCode = "VALIDATION_ERROR"
	ErrCode_CryptoError        ErrorCode = "CRYPTO_ERROR"
	ErrCode_TimeoutError       ErrorCode = "TIMEOUT_ERROR"
	ErrCode_PermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrCode_AccountNotFound    ErrorCode = "ACCOUNT_NOT_FOUND"
	ErrCode_TransactionFailed  ErrorCode = "TRANSACTION_FAILED"
	ErrCode_NetworkUnavailable ErrorCode = "NETWORK_UNAVAILABLE"
	ErrCode_InsufficientFunds  ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCode_InvalidTransaction ErrorCode = "INVALID_TRANSACTION"
	ErrCode_UserCancelled      ErrorCode = "USER_CANCELLED"
	ErrCode_AutoLockTriggered  ErrorCode = "AUTO_LOCK_TRIGGERED"
	ErrCode_ImportFailed       ErrorCode = "IMPORT_FAILED"
	ErrCode_ExportFailed       ErrorCode = "EXPORT_FAILED"
	ErrCode_MigrationFailed    ErrorCode = "MIGRATION_FAILED"
)

type Severity string

const (
	Severity_Low      Severity = "low"
	Severity_Medium   Severity = "medium"
	Severity_High     Severity = "high"
	Severity_Critical Severity = "critical"
)

// WalletError is the one failure type every subsystem raises. The raising
// site decides severity and recoverability, never the handler.
type WalletError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Severity    Severity               `json:"severity"`
	Recoverable bool                   `json:"recoverable"`
	Timestamp   time.Time              `json:"timestamp"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Cause       error                  `json:"-"`
}

func (e *WalletError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *WalletError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string, severity Severity, recoverable bool) *WalletError {
	return &WalletError{
		Code:        code,
		Message:     message,
		Severity:    severity,
		Recoverable: recoverable,
		Timestamp:   time.Now(),
	}
}

func NewWithCause(code ErrorCode, message string, severity Severity, recoverable bool, cause error) *WalletError {
	we := New(code, message, severity, recoverable)
	we.Cause = cause
	return we
}

// Validation errors are low severity and recoverable by construction: the
// caller is expected to re-prompt.
func NewValidation(message string) *WalletError {
	return New(ErrCode_ValidationError, message, Severity_Low, true)
}

// Classify normalizes an arbitrary failure into a WalletError. Typed errors
// keep their code and severity; everything else is classified by keyword
// heuristics over the message, defaulting to a validation error.
func Classify(err error) *WalletError {
	if err == nil {
		return nil
	}
	if we, ok := err.(*WalletError); ok {
		return we
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "network") || strings.Contains(msg, "fetch"):
		return NewWithCause(ErrCode_NetworkError, err.Error(), Severity_Medium, true, err)
	case strings.Contains(msg, "storage") || strings.Contains(msg, "indexing") || strings.Contains(msg, "leveldb") || strings.Contains(msg, "badger"):
		return NewWithCause(ErrCode_StorageError, err.Error(), Severity_High, true, err)
	case strings.Contains(msg, "crypto") || strings.Contains(msg, "key"):
		return NewWithCause(ErrCode_CryptoError, err.Error(), Severity_High, false, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return NewWithCause(ErrCode_TimeoutError, err.Error(), Severity_Medium, true, err)
	case strings.Contains(msg, "permission") || strings.Contains(msg, "access"):
		return NewWithCause(ErrCode_PermissionDenied, err.Error(), Severity_Medium, false, err)
	case strings.Contains(msg, "cancel") || strings.Contains(msg, "abort"):
		return NewWithCause(ErrCode_UserCancelled, err.Error(), Severity_Low, false, err)
	default:
		return NewWithCause(ErrCode_ValidationError, err.Error(), Severity_Low, true, err)
	}
}

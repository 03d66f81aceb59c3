package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeInvalidState    ErrorCode = "INVALID_STATE"
	ErrCodeDependency      ErrorCode = "DEPENDENCY_ERROR"
	ErrCodePaymentDeclined ErrorCode = "PAYMENT_DECLINED"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду и сообщению, чтобы errors.Is работал с копиями сентинелов.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// InvalidState - переход не допустим из текущего статуса.
func InvalidState(message string) *AppError {
	return New(ErrCodeInvalidState, message)
}

// Forbidden - вызывающий не участник сделки или не в той роли.
func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

// Validation - не заполнено обязательное поле.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// Conflict - сущность уже изменена конкурентной операцией.
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

// Dependency - сбой внешнего коллаборатора (БД, платежи, уведомления).
func Dependency(err error, message string) *AppError {
	return Wrap(err, ErrCodeDependency, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidState:
		return http.StatusConflict
	case ErrCodePaymentDeclined:
		return http.StatusPaymentRequired
	case ErrCodeDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки приложения или INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return hasCode(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

func IsInvalidState(err error) bool {
	return hasCode(err, ErrCodeInvalidState)
}

func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

func IsDependency(err error) bool {
	return hasCode(err, ErrCodeDependency) || hasCode(err, ErrCodeDatabaseError)
}

func IsPaymentDeclined(err error) bool {
	return hasCode(err, ErrCodePaymentDeclined)
}

var (
	ErrWorkRequestNotFound  = New(ErrCodeNotFound, "заявка не найдена")
	ErrApplicationNotFound  = New(ErrCodeNotFound, "отклик не найден")
	ErrDeliveryNotFound     = New(ErrCodeNotFound, "сдача работы не найдена")
	ErrCancellationNotFound = New(ErrCodeNotFound, "запрос на отмену не найден")
	ErrUserNotFound         = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized         = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden            = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials   = New(ErrCodeUnauthorized, "неверные учетные данные")
	ErrConcurrentUpdate     = New(ErrCodeConflict, "запись уже изменена другой операцией")
	ErrPendingCancellation  = New(ErrCodeConflict, "по заявке уже есть открытый запрос на отмену")
	ErrInsufficientFunds    = New(ErrCodePaymentDeclined, "недостаточно средств на балансе")
)

// Package apperr содержит классификацию ошибок SMM-панели.
package apperr

import (
	"errors"
	"net/http"
)

// ErrValidation возвращается при некорректных входных данных.
var (
	ErrValidation = errors.New("validation failed")
	// ErrNotFound возвращается, если сущность не найдена.
	ErrNotFound = errors.New("not found")
	// ErrConflict возвращается при конфликте параллельных или повторных операций.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition возвращается при недопустимом переходе статуса заказа.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTerminalState возвращается при попытке изменить заказ в конечном статусе.
	ErrTerminalState = errors.New("order is in terminal state")
	// ErrPaymentParse возвращается, если callback платёжного провайдера не разбирается.
	ErrPaymentParse = errors.New("payment callback parse failed")
	// ErrAmountMismatch возвращается при расхождении подтверждённой и ожидаемой суммы.
	ErrAmountMismatch = errors.New("payment amount mismatch")
	// ErrUnauthenticated возвращается при отсутствии проверенного субъекта запроса.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden возвращается при попытке доступа к чужому ресурсу.
	ErrForbidden = errors.New("forbidden")
)

// HTTPStatus сопоставляет ошибку с HTTP-кодом ответа.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrTerminalState):
		return http.StatusConflict
	case errors.Is(err, ErrPaymentParse),
		errors.Is(err, ErrAmountMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

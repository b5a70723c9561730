// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ТС или полис не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrInvalidInput — некорректные входные данные (дата, сумма, описание).
	ErrInvalidInput = errors.New("некорректные входные данные")
)

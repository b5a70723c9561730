package model

import "time"

// ExpirationLogEntry — отметка о том, что истечение полиса уже обработано.
// Хранится в таблице expiration_log. Создаётся только сканером,
// никогда не изменяется и не удаляется. Не более одной записи на полис.
type ExpirationLogEntry struct {
	// ID — автоинкрементный идентификатор
	ID int64
	// PolicyID — полис, истечение которого зафиксировано
	PolicyID int64
	// LoggedAt — момент обнаружения и записи
	LoggedAt time.Time
}

// ExpirationNotice — уведомление об истечении полиса.
type ExpirationNotice struct {
	// ScanID — идентификатор цикла сканирования
	ScanID string
	// PolicyID — истёкший полис
	PolicyID int64
	// VehicleID — ТС полиса
	VehicleID int64
	// EndDate — последний день покрытия
	EndDate Date
	// DetectedAt — момент цикла, в котором обнаружено истечение
	DetectedAt time.Time
}

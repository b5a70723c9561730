package model

import "time"

// ScanResult — итог одного цикла сканирования истёкших полисов.
type ScanResult struct {
	// ScanID — UUID цикла
	ScanID string
	// Now — момент, относительно которого выбраны кандидаты
	Now time.Time
	// Candidates — количество полисов в окне просмотра
	Candidates int
	// AlreadyLogged — пропущено как уже обработанные
	AlreadyLogged int
	// Notified — отправлено уведомлений
	Notified int
	// Recorded — записано отметок в журнал
	Recorded int
	// Failed — кандидаты, обработка которых завершилась ошибкой
	Failed int
	// Duration — длительность цикла
	Duration time.Duration
}

package model

// Policy — страховой полис ТС.
// Хранится в таблице policies. Окно покрытия [StartDate, EndDate]
// включает обе границы; StartDate <= EndDate гарантируется CHECK-ограничением.
// У одного ТС может быть несколько полисов, в том числе пересекающихся.
type Policy struct {
	// ID — идентификатор полиса
	ID int64
	// VehicleID — ТС, к которому относится полис
	VehicleID int64
	// StartDate — первый день покрытия
	StartDate Date
	// EndDate — последний день покрытия
	EndDate Date
	// Provider — страховщик (опционально)
	Provider *string
}

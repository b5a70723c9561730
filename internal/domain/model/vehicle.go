package model

// Owner — владелец транспортного средства.
// Хранится в таблице owners.
type Owner struct {
	// ID — идентификатор владельца
	ID int64
	// Name — имя владельца
	Name string
	// Email — контактный email (опционально)
	Email *string
}

// Vehicle — транспортное средство.
// Хранится в таблице vehicles. Ссылается на владельца, но не управляет
// его жизненным циклом.
type Vehicle struct {
	// ID — идентификатор ТС
	ID int64
	// VIN — идентификационный номер (уникальный)
	VIN string
	// Make — марка (опционально)
	Make *string
	// Model — модель (опционально)
	Model *string
	// Year — год выпуска
	Year int
	// OwnerID — идентификатор владельца
	OwnerID int64
}

// VehicleSummary — ТС вместе с данными владельца для списка.
type VehicleSummary struct {
	ID         int64
	VIN        string
	Make       *string
	Model      *string
	Year       int
	OwnerID    int64
	OwnerName  string
	OwnerEmail *string
}

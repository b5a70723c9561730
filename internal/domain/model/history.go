package model

import "github.com/shopspring/decimal"

// HistoryKind — тип записи истории ТС.
type HistoryKind string

const (
	// HistoryKindPolicy — запись, построенная из полиса
	HistoryKindPolicy HistoryKind = "Policy"
	// HistoryKindClaim — запись, построенная из страхового случая
	HistoryKindClaim HistoryKind = "Claim"
)

// HistoryEntry — нормализованная запись хронологии ТС.
type HistoryEntry struct {
	Kind      HistoryKind
	StartDate Date
	// EndDate — только для полисов
	EndDate *Date
	// Description — страховщик полиса или описание случая
	Description *string
	// Amount — только для страховых случаев
	Amount *decimal.Decimal
}

// ValidityResult — ответ на вопрос «застраховано ли ТС на дату».
type ValidityResult struct {
	VehicleID int64
	Date      Date
	Valid     bool
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Claim — страховой случай по ТС.
// Хранится в таблице claims. Amount — точная десятичная сумма
// (NUMERIC в БД), неотрицательная, без привязки к валюте.
type Claim struct {
	// ID — идентификатор страхового случая
	ID int64
	// VehicleID — ТС, к которому относится случай
	VehicleID int64
	// ClaimDate — дата страхового случая
	ClaimDate Date
	// Description — описание
	Description string
	// Amount — сумма
	Amount decimal.Decimal
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

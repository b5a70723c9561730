package history

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bigkaa/carinsurance/internal/domain/model"
)

func strPtr(s string) *string { return &s }

func TestMerge_PolicyThenClaimOrder(t *testing.T) {
	policies := []model.Policy{{
		ID:        1,
		VehicleID: 1,
		StartDate: model.NewDate(2024, time.January, 1),
		EndDate:   model.NewDate(2024, time.December, 31),
		Provider:  strPtr("Allianz"),
	}}
	claims := []model.Claim{{
		ID:          10,
		VehicleID:   1,
		ClaimDate:   model.NewDate(2024, time.March, 15),
		Description: "fender",
		Amount:      decimal.RequireFromString("250.00"),
	}}

	got := Merge(policies, claims)
	if len(got) != 2 {
		t.Fatalf("len = %d, хотели 2", len(got))
	}

	if got[0].Kind != model.HistoryKindPolicy {
		t.Errorf("первая запись: Kind = %s, хотели Policy", got[0].Kind)
	}
	if got[0].EndDate == nil || got[0].EndDate.String() != "2024-12-31" {
		t.Errorf("EndDate полиса = %v, хотели 2024-12-31", got[0].EndDate)
	}
	if got[0].Amount != nil {
		t.Error("у полиса не должно быть суммы")
	}
	if got[0].Description == nil || *got[0].Description != "Allianz" {
		t.Errorf("Description полиса = %v, хотели Allianz", got[0].Description)
	}

	if got[1].Kind != model.HistoryKindClaim {
		t.Errorf("вторая запись: Kind = %s, хотели Claim", got[1].Kind)
	}
	if got[1].EndDate != nil {
		t.Error("у случая не должно быть даты окончания")
	}
	if got[1].Amount == nil || !got[1].Amount.Equal(decimal.RequireFromString("250")) {
		t.Errorf("Amount = %v, хотели 250.00", got[1].Amount)
	}
}

func TestMerge_SameDayKeepsPoliciesFirst(t *testing.T) {
	day := model.NewDate(2024, time.January, 1)

	policies := []model.Policy{{ID: 1, StartDate: day, EndDate: day.AddDays(30)}}
	claims := []model.Claim{{ID: 2, ClaimDate: day, Description: "same day", Amount: decimal.NewFromInt(1)}}

	got := Merge(policies, claims)
	if got[0].Kind != model.HistoryKindPolicy || got[1].Kind != model.HistoryKindClaim {
		t.Errorf("при равных датах порядок = [%s, %s], хотели [Policy, Claim]", got[0].Kind, got[1].Kind)
	}
}

func TestMerge_StableWithinSource(t *testing.T) {
	day := model.NewDate(2024, time.May, 5)
	claims := []model.Claim{
		{ID: 3, ClaimDate: day.AddDays(1), Description: "later"},
		{ID: 1, ClaimDate: day, Description: "first"},
		{ID: 2, ClaimDate: day, Description: "second"},
	}

	got := Merge(nil, claims)
	want := []string{"first", "second", "later"}
	for i, w := range want {
		if *got[i].Description != w {
			t.Errorf("позиция %d: %q, хотели %q", i, *got[i].Description, w)
		}
	}
}

func TestMerge_Empty(t *testing.T) {
	got := Merge(nil, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Merge(nil, nil) = %v, хотели пустой срез (не nil)", got)
	}
}

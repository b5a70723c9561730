package model

import (
	"fmt"
	"time"
)

// DateLayout — формат календарной даты в API и логах (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Date — календарная дата без времени суток.
// Хранится как полночь UTC, поэтому сравнение двух Date никогда не
// зависит от часового пояса.
type Date struct {
	t time.Time
}

// NewDate создаёт дату из года, месяца и дня.
// Выход за границы месяца нормализуется так же, как в time.Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf возвращает календарную дату момента t в UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, m, d)
}

// ParseDate разбирает строку строго в формате YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("некорректная дата %q: ожидается формат YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// Time возвращает дату как time.Time (полночь UTC).
func (d Date) Time() time.Time {
	return d.t
}

// IsZero сообщает, что дата не задана.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// AddDays сдвигает дату на n дней (n может быть отрицательным).
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// Compare возвращает -1, 0 или +1.
func (d Date) Compare(other Date) int {
	return d.t.Compare(other.t)
}

// Before сообщает, что d строго раньше other.
func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

// After сообщает, что d строго позже other.
func (d Date) After(other Date) bool {
	return d.t.After(other.t)
}

// Equal сообщает, что даты совпадают.
func (d Date) Equal(other Date) bool {
	return d.t.Equal(other.t)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalText реализует encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

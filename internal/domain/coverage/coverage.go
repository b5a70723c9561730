// Пакет coverage — временные предикаты над полисами.
// Чистые функции без состояния: проверка покрытия на дату и выбор
// недавно истёкших полисов для сканера.
//
// Границы полиса — календарные даты, а «сейчас» — момент времени.
// Момент переводится в дату только через model.DateOf (UTC), чтобы
// сравнение шло строго на уровне дат.
package coverage

import (
	"time"

	"github.com/bigkaa/carinsurance/internal/domain/model"
)

// Covers сообщает, что date попадает в [StartDate, EndDate] полиса.
// Обе границы включены.
func Covers(p model.Policy, date model.Date) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// IsCovered возвращает true, если хотя бы один полис покрывает date.
// Пустой набор полисов — false.
func IsCovered(policies []model.Policy, date model.Date) bool {
	for _, p := range policies {
		if Covers(p, date) {
			return true
		}
	}
	return false
}

// ExpiryWindow возвращает диапазон дат [from, to], в котором дата окончания
// полиса считается «только что истёкшей»: from = дата(now - window),
// to = дата(now).
func ExpiryWindow(now time.Time, window time.Duration) (from, to model.Date) {
	return model.DateOf(now.Add(-window)), model.DateOf(now)
}

// IsRecentlyExpired сообщает, что EndDate полиса попадает в окно просмотра
// назад относительно now.
func IsRecentlyExpired(p model.Policy, now time.Time, window time.Duration) bool {
	from, to := ExpiryWindow(now, window)
	return !p.EndDate.Before(from) && !p.EndDate.After(to)
}

// vehicle_cache.go — LRU-кэш существования ТС с TTL.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша ТС.
var (
	vehicleCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_vehicle_cache_hits_total",
		Help: "Общее количество попаданий в кэш существования ТС.",
	})
	vehicleCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_vehicle_cache_misses_total",
		Help: "Общее количество промахов кэша существования ТС.",
	})
)

// VehicleCache запоминает id ТС, существование которых уже подтверждено.
// Хранятся только положительные ответы: сервис не удаляет ТС, а отсутствующее
// ТС может быть добавлено извне в любой момент.
type VehicleCache struct {
	cache *expirable.LRU[int64, struct{}]
}

// NewVehicleCache создаёт кэш с максимальным размером maxSize и TTL записи ttl.
func NewVehicleCache(maxSize int, ttl time.Duration) *VehicleCache {
	return &VehicleCache{cache: expirable.NewLRU[int64, struct{}](maxSize, nil, ttl)}
}

// Known сообщает, что существование ТС подтверждено и запись не истекла.
func (c *VehicleCache) Known(id int64) bool {
	if _, ok := c.cache.Get(id); ok {
		vehicleCacheHitsTotal.Inc()
		return true
	}
	vehicleCacheMissesTotal.Inc()
	return false
}

// Remember отмечает ТС как существующее.
func (c *VehicleCache) Remember(id int64) {
	c.cache.Add(id, struct{}{})
}

// Len возвращает текущее количество записей.
func (c *VehicleCache) Len() int {
	return c.cache.Len()
}

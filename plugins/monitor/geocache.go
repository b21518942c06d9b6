package monitor

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
)

const geocodeKeyPrefix = "dispinmap:worker:geocode:"

type geocodeCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func newGeocodeCache(client *redis.Client, ttl time.Duration) *geocodeCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &geocodeCache{
		redis: client,
		ttl:   ttl,
	}
}

func geocodeKey(name string) string {
	return geocodeKeyPrefix + strings.ToLower(strings.TrimSpace(name))
}

func (c *geocodeCache) get(name string) (*pinballmap.Coordinates, bool, error) {
	raw, err := c.redis.Get(geocodeKey(name)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	var coordinates pinballmap.Coordinates
	err = json.Unmarshal(raw, &coordinates)
	if err != nil {
		return nil, false, err
	}

	return &coordinates, true, nil
}

func (c *geocodeCache) set(name string, coordinates *pinballmap.Coordinates) error {
	raw, err := json.Marshal(coordinates)
	if err != nil {
		return err
	}

	return c.redis.Set(geocodeKey(name), raw, c.ttl).Err()
}

package geo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/trip-sync/internal/models"
)

// RedisPool implements Pool using Redis GEO commands plus a metadata hash
// per driver. The cmd/consumer pipeline keeps it current from the kafka
// location feed.
type RedisPool struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisPool(addr, password, key string) *RedisPool {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisPool{client: c, key: key, ctx: context.Background()}
}

func (r *RedisPool) Upsert(d models.User) {
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{Longitude: d.Loc.Lon, Latitude: d.Loc.Lat, Name: d.ID}).Result()
	_ = r.client.HSet(r.ctx, metaKey(d.ID), map[string]interface{}{
		"name":    d.Name,
		"online":  strconv.FormatBool(d.Online),
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisPool) Snapshot(near models.Coord, limit int) []models.User {
	res, err := r.client.GeoRadius(r.ctx, r.key, near.Lon, near.Lat, &redis.GeoRadiusQuery{
		Radius: 5000, Unit: "m", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC",
	}).Result()
	if err != nil {
		return nil
	}
	out := make([]models.User, 0, len(res))
	for _, g := range res {
		d := models.User{ID: g.Name, Role: models.RoleDriver}
		d.Loc.Lat = g.Latitude
		d.Loc.Lon = g.Longitude
		if m, err := r.client.HGetAll(r.ctx, metaKey(g.Name)).Result(); err == nil {
			d.Name = m["name"]
			if v, ok := m["online"]; ok {
				d.Online = (v == "true")
			}
		}
		if !d.Online {
			continue
		}
		out = append(out, d)
	}
	return out
}

func metaKey(id string) string { return fmt.Sprintf("driver:meta:%s", id) }

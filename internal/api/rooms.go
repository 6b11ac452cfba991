package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
)

// RoomInfo is the canonical identity of a live room. Resolved once per
// input id and assumed immutable afterwards.
type RoomInfo struct {
	RoomID   int64 // canonical room id
	ShortID  int64 // short alias; equals RoomID when the room has none
	OwnerUID int64 // broadcaster uid
}

// RoomInfoCache caches resolved room metadata keyed by the id the caller
// supplied (canonical or short). It is an explicit object rather than a
// package global so independent registries can be isolated.
type RoomInfoCache struct {
	mu    sync.RWMutex
	rooms map[int64]RoomInfo
}

// NewRoomInfoCache creates an empty cache.
func NewRoomInfoCache() *RoomInfoCache {
	return &RoomInfoCache{rooms: make(map[int64]RoomInfo)}
}

// Get returns the cached info for an input id.
func (c *RoomInfoCache) Get(id int64) (RoomInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.rooms[id]
	return info, ok
}

// Put stores info under both the input id and the resolved canonical id.
func (c *RoomInfoCache) Put(id int64, info RoomInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[id] = info
	c.rooms[info.RoomID] = info
}

// ResolveRoom resolves a caller-given room id (canonical or short alias)
// to its canonical identity. Results are cached for the life of the cache;
// once resolved a room's identity does not change.
func (c *Client) ResolveRoom(ctx context.Context, id int64) (RoomInfo, error) {
	if id <= 0 {
		return RoomInfo{}, fmt.Errorf("invalid room id %d", id)
	}

	if info, ok := c.roomCache.Get(id); ok {
		return info, nil
	}

	query := url.Values{
		"room_id":  []string{strconv.FormatInt(id, 10)},
		"protocol": []string{"0,1"},
		"format":   []string{"0,1,2"},
		"codec":    []string{"0,1,2"},
		"qn":       []string{"0"},
		"platform": []string{"web"},
	}

	var data struct {
		UID     int64 `json:"uid"`
		RoomID  int64 `json:"room_id"`
		ShortID int64 `json:"short_id"`
	}
	referer := fmt.Sprintf("https://live.bilibili.com/%d", id)
	if err := c.get(ctx, "/xlive/web-room/v2/index/getRoomPlayInfo", query, referer, nil, &data); err != nil {
		return RoomInfo{}, fmt.Errorf("resolve room %d: %w", id, err)
	}

	info := RoomInfo{
		RoomID:   data.RoomID,
		ShortID:  data.ShortID,
		OwnerUID: data.UID,
	}
	if info.ShortID == 0 {
		info.ShortID = info.RoomID
	}

	c.roomCache.Put(id, info)
	c.logger.Debug("resolved room",
		"input_id", id,
		"room_id", info.RoomID,
		"short_id", info.ShortID,
		"owner_uid", info.OwnerUID,
	)

	return info, nil
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Handshake carries the token and candidate servers returned by the
// handshake endpoint, plus the uid the connection should authenticate as.
type Handshake struct {
	Token      string
	Servers    []string // wss URLs in server-preferred order
	UID        int64    // 0 for anonymous
	ObtainedAt time.Time
}

// FetchHandshake calls the signed handshake endpoint for a canonical room
// id. Auth cookies come from the injected CookieProvider; without a
// usable DedeUserID cookie the call proceeds anonymously with uid 0 and
// no cookies at all, matching the server's expectation that uid and
// cookie identity agree.
func (c *Client) FetchHandshake(ctx context.Context, roomID int64) (Handshake, error) {
	cookies, uid := c.authCookies(ctx, roomID)

	params := url.Values{
		"id":   []string{strconv.FormatInt(roomID, 10)},
		"type": []string{"0"},
	}
	if c.signer != nil {
		signed, err := c.signer.Sign(ctx, roomID, params)
		if err != nil {
			return Handshake{}, fmt.Errorf("sign handshake params: %w", err)
		}
		params = signed
	}

	var data struct {
		Token    string `json:"token"`
		HostList []struct {
			Host    string `json:"host"`
			WSSPort int    `json:"wss_port"`
		} `json:"host_list"`
	}
	referer := fmt.Sprintf("https://live.bilibili.com/%d", roomID)
	if err := c.get(ctx, "/xlive/web-room/v1/index/getDanmuInfo", params, referer, cookies, &data); err != nil {
		return Handshake{}, fmt.Errorf("fetch handshake for room %d: %w", roomID, err)
	}

	if data.Token == "" || len(data.HostList) == 0 {
		return Handshake{}, fmt.Errorf("handshake for room %d returned no token or servers", roomID)
	}

	servers := make([]string, 0, len(data.HostList))
	for _, h := range data.HostList {
		servers = append(servers, fmt.Sprintf("wss://%s:%d/sub", h.Host, h.WSSPort))
	}

	c.logger.Info("fetched handshake",
		"room", roomID,
		"uid", uid,
		"servers", len(servers),
	)

	return Handshake{
		Token:      data.Token,
		Servers:    servers,
		UID:        uid,
		ObtainedAt: time.Now(),
	}, nil
}

// authCookies resolves the handshake identity from the cookie provider.
func (c *Client) authCookies(ctx context.Context, roomID int64) ([]*http.Cookie, int64) {
	if c.cookies == nil {
		return nil, 0
	}

	cookies, err := c.cookies.Cookies(ctx)
	if err != nil {
		c.logger.Warn("cookie provider failed, connecting anonymously",
			"room", roomID,
			"error", err,
		)
		return nil, 0
	}
	if len(cookies) == 0 {
		return nil, 0
	}

	for _, ck := range cookies {
		if ck.Name != "DedeUserID" {
			continue
		}
		uid, err := strconv.ParseInt(ck.Value, 10, 64)
		if err != nil || uid <= 0 {
			c.logger.Warn("invalid DedeUserID cookie, connecting anonymously", "room", roomID)
			return nil, 0
		}
		return cookies, uid
	}

	c.logger.Warn("no DedeUserID in cookies, connecting anonymously", "room", roomID)
	return nil, 0
}

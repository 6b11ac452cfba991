// Package auth loads viewer identity cookies for authenticated API calls.
package auth

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Static serves a fixed cookie set loaded at startup.
type Static struct {
	cookies []*http.Cookie
}

// NewStatic wraps an already-built cookie set.
func NewStatic(cookies []*http.Cookie) *Static {
	return &Static{cookies: cookies}
}

// Cookies returns the loaded cookie set.
func (s *Static) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	return s.cookies, nil
}

// LoadFile reads a Netscape-format cookie jar (cookies.txt) and returns
// a provider serving its unexpired cookies. Lines starting with # are
// comments except for the #HttpOnly_ domain prefix.
func LoadFile(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer f.Close()

	now := time.Now()
	var cookies []*http.Cookie

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "#HttpOnly_") {
			continue
		}
		line = strings.TrimPrefix(line, "#HttpOnly_")

		// domain, include-subdomains, path, secure, expiry, name, value
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}

		expiry, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}
		// expiry 0 marks a session cookie
		if expiry != 0 && time.Unix(expiry, 0).Before(now) {
			continue
		}

		cookies = append(cookies, &http.Cookie{
			Name:   fields[5],
			Value:  fields[6],
			Domain: fields[0],
			Path:   fields[2],
			Secure: fields[3] == "TRUE",
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	return &Static{cookies: cookies}, nil
}

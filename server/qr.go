package main

import (
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256 // pixels

// WatchURL is the page a spectator opens to follow a battle
func WatchURL(publicURL, battleID string) string {
	return strings.TrimRight(publicURL, "/") + "/battles/" + url.PathEscape(battleID)
}

// WSURL is the spectator feed for a token
func WSURL(publicURL, token string) string {
	u := strings.TrimRight(publicURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws?token=" + url.QueryEscape(token)
}

// QRCode renders content as a PNG
func QRCode(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, qrSize)
}

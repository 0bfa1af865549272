// Package qr renders QR code images for plant identification labels.
package qr

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the rendered image edge length in pixels.
const DefaultSize = 512

var errEmptyPayload = errors.New("qr payload cannot be empty")

// Encode renders the payload as a PNG-encoded QR code image.
func Encode(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, errEmptyPayload
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}

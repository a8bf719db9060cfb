package qrcode

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const (
	DefaultSize   = 256
	dataURIPrefix = "data:image/png;base64,"
)

// Encoder renders payloads as PNG QR codes embedded in data URIs
type Encoder struct {
	size int
}

// NewEncoder creates an encoder producing size x size images
func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = DefaultSize
	}
	return &Encoder{size: size}
}

// Encode returns a data:image/png;base64 URI of the payload's QR code
func (e *Encoder) Encode(payload string) (string, error) {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}

	scaled, err := barcode.Scale(code, e.size, e.size)
	if err != nil {
		return "", fmt.Errorf("failed to scale qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return "", fmt.Errorf("failed to write png: %w", err)
	}

	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

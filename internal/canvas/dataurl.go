package canvas

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp"
)

// ErrInvalidDataURL is returned when a payload is neither a data URL nor raw base64.
var ErrInvalidDataURL = errors.New("canvas: invalid base64 image payload")

// StripDataURL removes a leading "data:<mime>;base64," prefix if present.
func StripDataURL(payload string) string {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "data:") {
		return payload
	}
	if idx := strings.Index(payload, ","); idx >= 0 {
		return payload[idx+1:]
	}
	return payload
}

// ParseDataURL decodes a data URL or bare base64 string. The content type
// comes from the prefix when present and is sniffed otherwise.
func ParseDataURL(payload string) (string, []byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", nil, ErrInvalidDataURL
	}
	contentType := ""
	if strings.HasPrefix(payload, "data:") {
		header, _, ok := strings.Cut(payload, ",")
		if !ok {
			return "", nil, ErrInvalidDataURL
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return "", nil, fmt.Errorf("%w: only base64 data URLs are supported", ErrInvalidDataURL)
		}
		contentType = strings.TrimSuffix(meta, ";base64")
	}
	raw, err := base64.StdEncoding.DecodeString(StripDataURL(payload))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if contentType == "" {
		contentType = http.DetectContentType(raw)
	}
	return contentType, raw, nil
}

// EncodeDataURL renders bytes as a base64 data URL.
func EncodeDataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// EncodePNG renders an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("canvas: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNGDataURL renders an image as a PNG data URL.
func EncodePNGDataURL(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return EncodeDataURL("image/png", data), nil
}

// DecodeDataURL parses and decodes an image payload.
func DecodeDataURL(payload string) (image.Image, string, error) {
	_, raw, err := ParseDataURL(payload)
	if err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("canvas: decode image: %w", err)
	}
	return img, format, nil
}

// FlattenDataURL decodes a mask payload, flattens it and re-encodes it as PNG.
// Applying it to its own output returns the same payload.
func FlattenDataURL(payload string) (string, error) {
	img, _, err := DecodeDataURL(payload)
	if err != nil {
		return "", err
	}
	return EncodePNGDataURL(Flatten(img))
}

// MaskFromStrokes replays strokes onto a blank overlay of the given size and
// returns the flattened mask as a PNG data URL.
func MaskFromStrokes(width, height int, strokes []Stroke) (string, error) {
	if width <= 0 || height <= 0 || width > MaxSide || height > MaxSide {
		return "", fmt.Errorf("canvas: invalid mask size %dx%d", width, height)
	}
	m := NewMask(width, height)
	for _, s := range strokes {
		m.Apply(s)
	}
	return EncodePNGDataURL(m.Flatten())
}

// Dimensions decodes only the image header of a payload.
func Dimensions(payload string) (int, int, error) {
	_, raw, err := ParseDataURL(payload)
	if err != nil {
		return 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("canvas: decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

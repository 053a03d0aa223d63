package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
)

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("raster: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes an image as JPEG bytes. Quality is 0–1; values out of
// range fall back to 0.92.
func EncodeJPEG(img image.Image, quality float64) ([]byte, error) {
	if quality <= 0 || quality > 1 {
		quality = 0.92
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(quality * 100)}); err != nil {
		return nil, fmt.Errorf("raster: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI encodes an image as a self-contained data URI. mime selects the
// encoder; only image/png and image/jpeg are supported.
func DataURI(img image.Image, mime string, quality float64) (string, error) {
	var (
		data []byte
		err  error
	)
	switch mime {
	case "", "image/png":
		mime = "image/png"
		data, err = EncodePNG(img)
	case "image/jpeg":
		data, err = EncodeJPEG(img, quality)
	default:
		return "", fmt.Errorf("raster: unsupported still-image type %q", mime)
	}
	if err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Decode decodes encoded still-image bytes.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("raster: decode image: %w", err)
	}
	return img, format, nil
}

// DecodeDataURI decodes a base64 image data URI back into an image.
// The embedder uses it to verify an inlined resource actually decodes.
func DecodeDataURI(uri string) (image.Image, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("raster: not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("raster: malformed data URI")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("raster: unsupported data URI encoding %q", meta)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("raster: decode base64: %w", err)
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("raster: decode image: %w", err)
	}
	return img, format, nil
}

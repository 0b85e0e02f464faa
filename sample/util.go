package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"github.com/gofiber/fiber/v2"

	fingerprint "github.com/high-horse/fingerprint"
	"github.com/high-horse/fingerprint/render"
)

// decodeImage accepts plain base64 or a data URI and decodes the image it holds.
func decodeImage(field, encoded string, maxBytes int) (image.Image, error) {
	if encoded == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, field+" is required")
	}
	if strings.HasPrefix(encoded, "data:") {
		parts := strings.SplitN(encoded, ",", 2)
		if len(parts) != 2 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid data URI in "+field)
		}
		meta := parts[0]
		encoded = parts[1]
		if !strings.Contains(meta, "image/jpeg") && !strings.Contains(meta, "image/png") && !strings.Contains(meta, "image/gif") {
			return nil, fiber.NewError(fiber.StatusUnsupportedMediaType, "unsupported image type in "+field)
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("failed to decode base64 %s: %v", field, err))
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds %d bytes", field, maxBytes))
	}
	img, err := fingerprint.DecodeImage(data)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnsupportedMediaType, fmt.Sprintf("%s: %v", field, err))
	}
	return img, nil
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

package ui

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"slices"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// MaxFileSize is the largest image accepted for upload.
const MaxFileSize = 20 << 20

var allowedTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
	"image/webp",
}

const (
	msgNotAnImage     = "Please drop a valid image file."
	msgTooLarge       = "Image too large. Please use an image smaller than 20MB."
	msgUnsupported    = "Unsupported image format. Please use JPG, PNG, GIF, or WebP."
	msgReadFailed     = "Failed to read the image file."
	msgProcessFailed  = "Failed to process the image file."
	msgNoImage        = "Please upload an image first."
	msgInvalidPayload = "Invalid image data format"
)

// File is a user-selected file as reported by the platform: metadata is
// known before any byte is read.
type File struct {
	Name   string
	Type   string
	Size   int64
	Reader io.Reader
}

// ValidationError is a problem with the user's input found before any
// network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// validate checks the declared metadata only; it never reads the file.
func validate(f File) error {
	mediaType := strings.ToLower(f.Type)
	if !strings.HasPrefix(mediaType, "image/") {
		return &ValidationError{Message: msgNotAnImage}
	}
	if f.Size > MaxFileSize {
		return &ValidationError{Message: msgTooLarge}
	}
	if !slices.Contains(allowedTypes, mediaType) {
		return &ValidationError{Message: msgUnsupported}
	}
	return nil
}

// readImage reads f into a data URL and probes its header for dimensions.
func readImage(f File) (*Image, error) {
	if f.Reader == nil {
		return nil, &ValidationError{Message: msgReadFailed}
	}

	data, err := io.ReadAll(io.LimitReader(f.Reader, MaxFileSize+1))
	if err != nil {
		return nil, &ValidationError{Message: msgReadFailed}
	}
	if len(data) > MaxFileSize {
		return nil, &ValidationError{Message: msgTooLarge}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{Message: msgProcessFailed}
	}

	mediaType := strings.ToLower(f.Type)
	if mediaType == "image/jpg" {
		mediaType = "image/jpeg"
	}
	return &Image{
		Name:      f.Name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Width:     cfg.Width,
		Height:    cfg.Height,
		DataURL:   fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data)),
	}, nil
}

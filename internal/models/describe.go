package models

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const DefaultImageType = "image/jpeg"

var ErrNoImage = errors.New("no image data provided")

// DescribeRequest represents request for describe endpoint
type DescribeRequest struct {
	Image     string    `json:"image" validate:"required" example:"iVBORw0KGgoAAAANSUhEUgAA..."`
	ImageType string    `json:"imageType,omitempty" example:"image/png"`
	MaxWords  WordCount `json:"maxWords,omitempty" swaggertype:"integer" example:"50"`
}

func (r DescribeRequest) Validate() error {
	if strings.TrimSpace(r.Image) == "" {
		return ErrNoImage
	}
	return nil
}

// MediaType returns the declared image type, falling back to JPEG.
func (r DescribeRequest) MediaType() string {
	if r.ImageType == "" {
		return DefaultImageType
	}
	return r.ImageType
}

// WordCount is the requested description length. It decodes leniently:
// numbers and numeric strings are accepted, anything else decodes to zero,
// which callers treat as "use the default".
type WordCount int

func (w *WordCount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*w = 0
		return nil
	}
	*w = WordCount(math.Trunc(min(max(f, 0), math.MaxInt32)))
	return nil
}

// Resolve applies the default for unset or non-positive counts and clamps
// the result to limit.
func (w WordCount) Resolve(def, limit int) int {
	n := int(w)
	if n <= 0 {
		n = def
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

type DescribeResponse struct {
	Description string `json:"description" example:"A golden retriever lying on green grass in bright sunlight."`
	Success     bool   `json:"success" example:"true"`
}

type ErrorResponse struct {
	Error   string `json:"error" example:"No image data provided"`
	Details string `json:"details,omitempty"`
}

type StreamChunk struct {
	Delta       string `json:"delta,omitempty"`
	Description string `json:"description,omitempty"`
	Success     bool   `json:"success,omitempty"`
	Done        bool   `json:"-"`
	Err         error  `json:"-"`
}

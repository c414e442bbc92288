package images

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const (
	outputWidth  = 900
	outputHeight = 600
	jpegQuality  = 80
)

// Transformer converts edited images to the publish format: a 900x600
// center-cropped JPEG.
type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// Resize decodes src, fills it into the output dimensions with a center
// anchor, and re-encodes as JPEG.
func (t *Transformer) Resize(src []byte) ([]byte, string, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Fill(img, outputWidth, outputHeight, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug converts a headline into a filename-safe slug, capped at 60 runes.
func Slug(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = strings.Trim(s[:60], "-")
	}
	if s == "" {
		s = "article"
	}
	return s
}

// FileName builds the upload filename for a processed image.
func FileName(title string, now time.Time) string {
	return fmt.Sprintf("%s-%d.jpg", Slug(title), now.UnixMilli())
}

package asset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var errNotAnImage = errors.New("data is not a recognised image")

// DecodeImage decodes PNG, JPEG, GIF, BMP, TIFF or WebP bytes into RGBA8 staging data.
// The content type is sniffed first so non-image payloads fail fast with a clear error.
//
// Parameters:
//   - data: the encoded image bytes
//
// Returns:
//   - common.TextureStagingData: the decoded pixels
//   - error: error if the data is not an image or decoding fails
func DecodeImage(data []byte) (common.TextureStagingData, error) {
	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return common.TextureStagingData{}, fmt.Errorf("%w (detected %q)", errNotAnImage, kind.MIME.Value)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return common.TextureStagingData{}, fmt.Errorf("%s image has zero size", format)
	}

	return common.TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}

package attach

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// previewableTypes is the fixed allow-list of image content types that get a
// preview file and dimension extraction.
var previewableTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

const (
	previewMaxSize     = 512
	previewJPEGQuality = 80
)

// Previewable reports whether contentType is on the preview allow-list.
func Previewable(contentType string) bool {
	return previewableTypes[contentType]
}

// writePreview writes a preview file for the staged image under dir and
// returns its path. Decodable images are downscaled to previewMaxSize and
// re-encoded as JPEG; anything the decoder rejects is written verbatim so a
// preview reference always exists for allow-listed types.
func writePreview(dir, id string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create preview dir: %w", err)
	}
	path := filepath.Join(dir, id+".preview")

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if err := os.WriteFile(path, data, 0600); err != nil {
			return "", fmt.Errorf("write preview: %w", err)
		}
		return path, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, downscale(src), &jpeg.Options{Quality: previewJPEGQuality}); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return "", fmt.Errorf("write preview: %w", err)
	}
	return path, nil
}

// removePreview deletes a preview file; a missing file is not an error.
func removePreview(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// decodeDimensions extracts pixel dimensions from an encoded image.
func decodeDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// downscale fits src into previewMaxSize, preserving aspect ratio.
func downscale(src image.Image) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= previewMaxSize && h <= previewMaxSize {
		return src
	}

	scale := float64(previewMaxSize) / float64(w)
	if h > w {
		scale = float64(previewMaxSize) / float64(h)
	}
	dw, dh := int(float64(w)*scale), int(float64(h)*scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

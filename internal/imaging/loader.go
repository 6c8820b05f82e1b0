package imaging

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// LoadFunc resolves a file path into a decoded, resized image. It exists so
// the pipeline can be exercised without real files on disk.
type LoadFunc func(path string, size, channels int) (Image, error)

// PreprocessFunc maps a raw image batch to a model-ready batch. A nil
// PreprocessFunc is the identity cast: decoded uint8 intensities already
// arrive as float32.
type PreprocessFunc func(images []Image) []Image

// LoadImage decodes a PNG or JPEG file and resizes it to size x size with
// bilinear resampling. channels must be 1 (grayscale) or 3; chest
// radiographs are grayscale, so 3-channel output replicates luminance.
func LoadImage(path string, size, channels int) (Image, error) {
	if channels != 1 && channels != 3 {
		return Image{}, fmt.Errorf("unsupported channel count %d", channels)
	}

	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return Image{}, fmt.Errorf("decode image %s: %w", path, err)
	}

	gray := image.NewGray(image.Rect(0, 0, size, size))
	xdraw.BiLinear.Scale(gray, gray.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	img := NewImage(size, size, channels)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := float32(gray.GrayAt(x, y).Y)
			base := (y*size + x) * channels
			for c := 0; c < channels; c++ {
				img.Pix[base+c] = v
			}
		}
	}
	return img, nil
}

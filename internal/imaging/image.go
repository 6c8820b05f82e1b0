package imaging

// Image is a decoded input image stored as float32 in row-major HWC order.
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []float32
}

// Grid is a single-channel 2-D raster of probabilities, row-major.
type Grid struct {
	Height int
	Width  int
	Pix    []float32
}

// Mask is a binary 2-D raster, row-major, values restricted to 0 and 1.
type Mask struct {
	Height int
	Width  int
	Pix    []uint8
}

func NewImage(height, width, channels int) Image {
	return Image{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]float32, height*width*channels),
	}
}

func NewGrid(height, width int) Grid {
	return Grid{Height: height, Width: width, Pix: make([]float32, height*width)}
}

func NewMask(height, width int) Mask {
	return Mask{Height: height, Width: width, Pix: make([]uint8, height*width)}
}

// FlipLR returns a copy of the image mirrored across its vertical axis.
// Channel order within each pixel is preserved.
func (img Image) FlipLR() Image {
	out := NewImage(img.Height, img.Width, img.Channels)
	c := img.Channels
	for y := 0; y < img.Height; y++ {
		row := y * img.Width * c
		for x := 0; x < img.Width; x++ {
			src := row + x*c
			dst := row + (img.Width-1-x)*c
			copy(out.Pix[dst:dst+c], img.Pix[src:src+c])
		}
	}
	return out
}

// FlipLR returns a copy of the grid mirrored across its vertical axis.
func (g Grid) FlipLR() Grid {
	out := NewGrid(g.Height, g.Width)
	for y := 0; y < g.Height; y++ {
		row := y * g.Width
		for x := 0; x < g.Width; x++ {
			out.Pix[row+(g.Width-1-x)] = g.Pix[row+x]
		}
	}
	return out
}

package rimage

import "image"

// ImageToUInt8Buffer returns the pixels of img as interleaved R, G, B bytes, row-major from the
// top left corner. Alpha is dropped.
func ImageToUInt8Buffer(img image.Image) []byte {
	bounds := img.Bounds()
	out := make([]byte, 0, bounds.Dx()*bounds.Dy()*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := NewColorFromColor(img.At(x, y)).RGB255()
			out = append(out, r, g, b)
		}
	}
	return out
}

// ImageToFloatBuffer is ImageToUInt8Buffer with every channel scaled to [0, 1].
func ImageToFloatBuffer(img image.Image) []float32 {
	bytes := ImageToUInt8Buffer(img)
	out := make([]float32, len(bytes))
	for i, b := range bytes {
		out[i] = float32(b) / 255
	}
	return out
}

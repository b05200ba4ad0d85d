package metadata

// BytesPerPixel of decoded images. Pixels are always tightly packed RGBA8.
const BytesPerPixel = 4

/**
 * @brief Decoded pixels of an image slot. Source is the file the pixels were
 * read from and is empty for generated images. Placeholder marks the stand-in
 * used when the file could not be decoded.
 */
type ImageResourceData struct {
	Source      string
	Width       uint32
	Height      uint32
	Pixels      []uint8
	Placeholder bool
}

// Size is the byte count a Width x Height RGBA8 upload needs.
func (d *ImageResourceData) Size() uint64 {
	return uint64(d.Width) * uint64(d.Height) * BytesPerPixel
}

// Complete reports whether Pixels covers the whole image.
func (d *ImageResourceData) Complete() bool {
	return d.Width > 0 && d.Height > 0 && uint64(len(d.Pixels)) >= d.Size()
}

type ImageResourceParams struct {
	// FlipY stores rows bottom-up.
	FlipY bool
}

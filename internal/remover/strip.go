package remover

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"github.com/deploymenttheory/go-genmeta/internal/container"
)

// preservedChunks are the non-textual PNG chunks copied into the rewritten
// file: gamma, and physical pixel size (dpi and aspect ratio). Transparency
// travels with the decoded pixels.
var preservedChunks = []string{"gAMA", "pHYs"}

// stripPNG re-encodes the decoded pixels into a fresh PNG so no ancillary
// text, EXIF or time chunks survive.
func stripPNG(data []byte) ([]byte, error) {
	original, err := container.ParsePNG(data)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode png")
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	fresh, err := container.ParsePNG(buf.Bytes())
	if err != nil {
		return nil, err
	}

	var keep []container.Chunk
	for _, typ := range preservedChunks {
		if c, ok := container.Find(original, typ); ok {
			keep = append(keep, c)
		}
	}
	return container.EncodePNG(container.InsertAfter(fresh, "IHDR", keep...)), nil
}

// stripJPEG drops metadata segments and copies everything else, including
// the compressed scan data, verbatim.
func stripJPEG(data []byte) ([]byte, error) {
	j, err := container.ParseJPEG(data)
	if err != nil {
		return nil, err
	}
	out := j.Filter(keepJPEGSegment).Bytes()
	if _, err := jpeg.DecodeConfig(bytes.NewReader(out)); err != nil {
		return nil, errors.Wrap(err, "verify jpeg")
	}
	return out, nil
}

// keepJPEGSegment keeps coding segments plus the JFIF header, ICC profile and
// Adobe color transform marker. Other APPn (EXIF, XMP, IPTC, vendor blocks)
// and comments are dropped.
func keepJPEGSegment(s container.Segment) bool {
	switch {
	case s.Marker == container.MarkerAPP0:
		return bytes.HasPrefix(s.Data, []byte("JFIF\x00"))
	case s.Marker == container.MarkerAPP2:
		return bytes.HasPrefix(s.Data, []byte("ICC_PROFILE\x00"))
	case s.Marker == container.MarkerAPP14:
		return bytes.HasPrefix(s.Data, []byte("Adobe"))
	case s.IsAPP(), s.Marker == container.MarkerCOM:
		return false
	}
	return true
}

// stripTIFF decodes the first page and re-encodes it losslessly with only
// the structural tags the encoder writes.
func stripTIFF(data []byte) ([]byte, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode tiff")
	}

	var buf bytes.Buffer
	if err := tiff.Encode(&buf, flatten(img), &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return nil, errors.Wrap(err, "encode tiff")
	}
	return buf.Bytes(), nil
}

// flatten converts palette and alpha images to opaque RGB, discarding the
// alpha channel. Other color models pass through unchanged.
func flatten(img image.Image) image.Image {
	switch img.(type) {
	case *image.Paletted, *image.NRGBA, *image.RGBA:
		b := img.Bounds()
		out := image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				out.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
			}
		}
		return out
	case *image.NRGBA64, *image.RGBA64:
		b := img.Bounds()
		out := image.NewRGBA64(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
				out.SetRGBA64(x, y, color.RGBA64{R: c.R, G: c.G, B: c.B, A: 0xFFFF})
			}
		}
		return out
	}
	return img
}

package store

import (
	"fmt"
	"image"
	"time"

	"github.com/fxamacker/cbor/v2"

	fingerprint "github.com/high-horse/fingerprint"
)

// maxTemplateSide bounds decoded dimensions so width*height cannot overflow.
const maxTemplateSide = 1 << 15

// templateRecord is the stored form of a template. Ridge pixels are packed
// one bit per pixel, row-major, most significant bit first.
type templateRecord struct {
	ID        string  `cbor:"1,keyasint"`
	Identity  string  `cbor:"2,keyasint"`
	Width     int     `cbor:"3,keyasint"`
	Height    int     `cbor:"4,keyasint"`
	Frequency float64 `cbor:"5,keyasint"`
	Ridges    []byte  `cbor:"6,keyasint"`
	CreatedAt int64   `cbor:"7,keyasint"`
}

func EncodeTemplate(t *fingerprint.Template) ([]byte, error) {
	rec := templateRecord{
		ID:        t.ID,
		Identity:  t.Identity,
		Frequency: t.Frequency,
		CreatedAt: t.CreatedAt.UnixMilli(),
	}
	if fp := t.Fingerprint; fp != nil {
		b := fp.Bounds()
		rec.Width, rec.Height = b.Dx(), b.Dy()
		rec.Ridges = make([]byte, (rec.Width*rec.Height+7)/8)
		for y := 0; y < rec.Height; y++ {
			for x := 0; x < rec.Width; x++ {
				if fp.GrayAt(b.Min.X+x, b.Min.Y+y).Y != 0 {
					i := y*rec.Width + x
					rec.Ridges[i/8] |= 0x80 >> (i % 8)
				}
			}
		}
	}
	data, err := cbor.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode template %s: %w", t.Identity, err)
	}
	return data, nil
}

func DecodeTemplate(data []byte) (*fingerprint.Template, error) {
	var rec templateRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	if rec.Width < 0 || rec.Height < 0 || rec.Width > maxTemplateSide || rec.Height > maxTemplateSide ||
		len(rec.Ridges) != (rec.Width*rec.Height+7)/8 {
		return nil, fmt.Errorf("corrupt template %s: %dx%d with %d bytes", rec.Identity, rec.Width, rec.Height, len(rec.Ridges))
	}
	t := &fingerprint.Template{
		ID:        rec.ID,
		Identity:  rec.Identity,
		Frequency: rec.Frequency,
		CreatedAt: time.UnixMilli(rec.CreatedAt).UTC(),
	}
	if rec.Width > 0 && rec.Height > 0 {
		img := image.NewGray(image.Rect(0, 0, rec.Width, rec.Height))
		for i := range img.Pix {
			if rec.Ridges[i/8]&(0x80>>(i%8)) != 0 {
				img.Pix[i] = 255
			}
		}
		t.Fingerprint = img
	}
	return t, nil
}

package generators

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"ultrapay-backend/internal/models"
)

const syntheticSize = 64

// Synthetic produces deterministic placeholder media seeded from the prompt.
// It stands in for vendors without a configured API and keeps the rest of
// the pipeline (storage, ledger, share page) exercised end to end.
type Synthetic struct {
	provider  string
	model     string
	mediaType models.MediaType
}

func NewSynthetic(provider, model string, mediaType models.MediaType) *Synthetic {
	return &Synthetic{provider: provider, model: model, mediaType: mediaType}
}

func (s *Synthetic) Generate(ctx context.Context, prompt string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable(s.provider, err)
	}

	seed := sha256.Sum256([]byte(s.provider + "\x00" + s.model + "\x00" + prompt))

	var (
		data     []byte
		mimeType string
		err      error
	)
	if s.mediaType == models.MediaTypeVideo {
		data, mimeType = syntheticVideo(seed), "video/mp4"
	} else {
		data, err = syntheticPNG(seed)
		mimeType = "image/png"
	}
	if err != nil {
		return nil, Unavailable(s.provider, fmt.Errorf("synthetic render: %w", err))
	}

	return &Artifact{
		Data:     data,
		MimeType: mimeType,
		Metadata: map[string]string{
			"provider":  s.provider,
			"model":     s.model,
			"synthetic": "true",
		},
	}, nil
}

func syntheticPNG(seed [32]byte) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, syntheticSize, syntheticSize))
	from := color.RGBA{R: seed[0], G: seed[1], B: seed[2], A: 0xff}
	to := color.RGBA{R: seed[3], G: seed[4], B: seed[5], A: 0xff}
	for y := 0; y < syntheticSize; y++ {
		for x := 0; x < syntheticSize; x++ {
			t := float64(x+y) / float64(2*(syntheticSize-1))
			img.Set(x, y, color.RGBA{
				R: lerp(from.R, to.R, t),
				G: lerp(from.G, to.G, t),
				B: lerp(from.B, to.B, t),
				A: 0xff,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}

// syntheticVideo emits an ISO BMFF "ftyp" box followed by a "free" box
// carrying the seed, which is enough for mime sniffers to classify it as MP4.
func syntheticVideo(seed [32]byte) []byte {
	var buf bytes.Buffer
	ftyp := []byte("isom\x00\x00\x02\x00isomiso2mp41")
	_ = binary.Write(&buf, binary.BigEndian, uint32(8+len(ftyp)))
	buf.WriteString("ftyp")
	buf.Write(ftyp)
	_ = binary.Write(&buf, binary.BigEndian, uint32(8+len(seed)))
	buf.WriteString("free")
	buf.Write(seed[:])
	return buf.Bytes()
}

package publish

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image/color"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	coverArtWidth  = 1200
	coverArtHeight = 1800
)

var coverPalette = [][2]color.RGBA{
	{{0x1f, 0x3b, 0x73, 0xff}, {0x4a, 0x7b, 0xd0, 0xff}},
	{{0x5b, 0x21, 0x4f, 0xff}, {0xc0, 0x4e, 0x8a, 0xff}},
	{{0x14, 0x53, 0x47, 0xff}, {0x3f, 0xa3, 0x7f, 0xff}},
	{{0x7a, 0x2e, 0x0e, 0xff}, {0xe0, 0x7a, 0x30, 0xff}},
	{{0x2d, 0x2d, 0x3a, 0xff}, {0x6e, 0x6e, 0x8c, 0xff}},
}

var (
	fontsOnce sync.Once
	titleFont *truetype.Font
	bodyFont  *truetype.Font
	fontsErr  error
)

func loadFonts() {
	titleFont, fontsErr = truetype.Parse(gobold.TTF)
	if fontsErr != nil {
		return
	}
	bodyFont, fontsErr = truetype.Parse(goregular.TTF)
}

func fontFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone})
}

// CoverArt draws a typographic cover for items that have no cover image.
// The colors are picked from the title so the same title always gets the
// same cover.
func CoverArt(title, subtitle string) ([]byte, error) {
	fontsOnce.Do(loadFonts)
	if fontsErr != nil {
		return nil, fmt.Errorf("load cover fonts: %w", fontsErr)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(title))
	pair := coverPalette[int(h.Sum32()%uint32(len(coverPalette)))]

	dc := gg.NewContext(coverArtWidth, coverArtHeight)
	grad := gg.NewLinearGradient(0, 0, 0, coverArtHeight)
	grad.AddColorStop(0, pair[0])
	grad.AddColorStop(1, pair[1])
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, coverArtWidth, coverArtHeight)
	dc.Fill()

	dc.SetColor(color.RGBA{0xff, 0xff, 0xff, 0x40})
	dc.SetLineWidth(6)
	dc.DrawRectangle(60, 60, coverArtWidth-120, coverArtHeight-120)
	dc.Stroke()

	dc.SetColor(color.White)
	dc.SetFontFace(fontFace(titleFont, 104))
	dc.DrawStringWrapped(title, coverArtWidth/2, coverArtHeight*0.38, 0.5, 0.5, coverArtWidth-240, 1.3, gg.AlignCenter)

	if s := strings.TrimSpace(subtitle); s != "" {
		dc.SetFontFace(fontFace(bodyFont, 48))
		dc.DrawStringWrapped(s, coverArtWidth/2, coverArtHeight*0.78, 0.5, 0.5, coverArtWidth-240, 1.4, gg.AlignCenter)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

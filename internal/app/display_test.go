package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/accurate_clock/internal/clock"
)

func litPixels(img *image1bit.VerticalLSB) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestDrawReading(t *testing.T) {
	t.Parallel()

	img := drawReading(clock.Reading{
		AccurateClock:  "2024/01/01 12:00:00.250",
		Difference:     "+09:18:46.258",
		Sunrise:        "06:51:27.000",
		Sunset:         "16:38:54.000",
		NetworkQuality: clock.QualityGood,
	})

	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
	assert.Positive(t, litPixels(img))
}

func TestDrawLinesBlank(t *testing.T) {
	t.Parallel()

	assert.Zero(t, litPixels(drawLines()))
	assert.Zero(t, litPixels(drawLines("", "")))
}

func TestTrimMillis(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "06:51:27", trimMillis("06:51:27.123"))
	assert.Equal(t, clock.NoSunrise, trimMillis(clock.NoSunrise))
	assert.Equal(t, clock.Pending, trimMillis(clock.Pending))
}

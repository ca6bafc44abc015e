// Command genicons renders the full web app icon set from a single logo
// image: transparent icons for the manifest, solid-background variants,
// and apple touch icons.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

var (
	logoFlag    string
	logoURLFlag string
	outFlag     string
	paddingFlag float64
	themeFlag   string
	noSolidFlag bool
	verboseFlag bool
)

var (
	iconSizes       = []int{72, 96, 128, 144, 152, 167, 180, 192, 256, 384, 512}
	appleTouchSizes = []int{120, 152, 180}
)

func init() {
	flag.StringVar(&logoFlag, "logo", "", "Path to the source logo image")
	flag.StringVar(&logoURLFlag, "logo-url", "", "URL to fetch the source logo from")
	flag.StringVar(&outFlag, "out", "icons", "Output directory")
	flag.Float64Var(&paddingFlag, "padding", 0.12, "Padding around the logo as a fraction of the icon size")
	flag.StringVar(&themeFlag, "theme", "#4CAF50", "Theme color for solid backgrounds")
	flag.BoolVar(&noSolidFlag, "no-solid", false, "Skip the solid-background variants")
	flag.BoolVar(&verboseFlag, "v", false, "Verbose (debug) logging")
}

func main() {
	flag.Parse()

	logLevel := zerolog.InfoLevel
	if verboseFlag {
		logLevel = zerolog.DebugLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})

	if (logoFlag == "") == (logoURLFlag == "") {
		log.Fatal().Msg("Please specify exactly one of -logo and -logo-url")
	}

	theme, err := parseHexColor(themeFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse theme color")
	}

	logo, err := loadLogo()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load logo")
	}
	logo = autocrop(logo)
	log.Debug().
		Int("width", logo.Bounds().Dx()).
		Int("height", logo.Bounds().Dy()).
		Msg("Loaded logo")

	if err := os.MkdirAll(outFlag, 0755); err != nil {
		log.Fatal().Err(err).Msg("Could not create output directory")
	}

	written := 0
	for _, size := range iconSizes {
		name := fmt.Sprintf("icon-%dx%d.png", size, size)
		if err := writeIcon(filepath.Join(outFlag, name), renderIcon(logo, size, paddingFlag, nil)); err != nil {
			log.Fatal().Err(err).Str("icon", name).Msg("Could not write icon")
		}
		written++
		if noSolidFlag {
			continue
		}
		name = fmt.Sprintf("icon-%dx%d-solid.png", size, size)
		if err := writeIcon(filepath.Join(outFlag, name), renderIcon(logo, size, paddingFlag, theme)); err != nil {
			log.Fatal().Err(err).Str("icon", name).Msg("Could not write icon")
		}
		written++
	}
	// apple touch icons never use transparency
	for _, size := range appleTouchSizes {
		name := fmt.Sprintf("apple-touch-icon-%dx%d.png", size, size)
		if err := writeIcon(filepath.Join(outFlag, name), renderIcon(logo, size, paddingFlag, theme)); err != nil {
			log.Fatal().Err(err).Str("icon", name).Msg("Could not write icon")
		}
		written++
	}
	log.Info().Int("icons", written).Str("dir", outFlag).Msg("Icon set complete")
}

func loadLogo() (image.Image, error) {
	var reader io.ReadCloser
	if logoFlag != "" {
		file, err := os.Open(logoFlag)
		if err != nil {
			return nil, err
		}
		reader = file
	} else {
		res, err := http.Get(logoURLFlag)
		if err != nil {
			return nil, err
		}
		if res.StatusCode != http.StatusOK {
			res.Body.Close()
			return nil, fmt.Errorf("fetch logo: unexpected status %s", res.Status)
		}
		reader = res.Body
	}
	defer reader.Close()
	img, _, err := image.Decode(reader)
	return img, err
}

var hexColorRe = regexp.MustCompile(`^#?([0-9a-fA-F]{6})$`)

func parseHexColor(s string) (color.Color, error) {
	m := hexColorRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(m[1], 16, 32)
	if err != nil {
		return nil, err
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// autocrop trims fully transparent edges so padding is measured from the
// visible logo, not its canvas.
func autocrop(img image.Image) image.Image {
	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X, bounds.Min.Y
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				if x < minX {
					minX = x
				}
				if y < minY {
					minY = y
				}
				if x >= maxX {
					maxX = x + 1
				}
				if y >= maxY {
					maxY = y + 1
				}
			}
		}
	}
	if minX >= maxX || minY >= maxY {
		// fully transparent image, keep as is
		return img
	}
	cropped := image.NewNRGBA(image.Rect(0, 0, maxX-minX, maxY-minY))
	draw.Copy(cropped, image.Point{}, img, image.Rect(minX, minY, maxX, maxY), draw.Src, nil)
	return cropped
}

// renderIcon scales the logo onto a size x size canvas, centered inside
// the padding. A nil background keeps the canvas transparent.
func renderIcon(logo image.Image, size int, padding float64, background color.Color) image.Image {
	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	if background != nil {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	}

	inner := size - int(float64(size)*padding*2)
	if inner < 1 {
		inner = 1
	}
	bounds := logo.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	// fit the logo into the inner square, keeping its aspect ratio
	scaledW, scaledH := inner, inner
	if width > height {
		scaledH = inner * height / width
	} else {
		scaledW = inner * width / height
	}
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}
	x := (size - scaledW) / 2
	y := (size - scaledH) / 2
	draw.CatmullRom.Scale(canvas, image.Rect(x, y, x+scaledW, y+scaledH), logo, bounds, draw.Over, nil)
	return canvas
}

func writeIcon(filename string, img image.Image) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return err
	}
	log.Debug().Str("icon", filepath.Base(filename)).Msg("Wrote icon")
	return nil
}

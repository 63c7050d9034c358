package visualize

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/nvr-ai/go-rtdetr/logger"
	"github.com/nvr-ai/go-rtdetr/models/postprocess"
	"github.com/up-zero/gotool/imageutil"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// DefaultThickness is the outline width in pixels.
const DefaultThickness = 2

// Renderer draws detections onto a copy of an image.
type Renderer struct {
	face      font.Face
	thickness int
	text      color.Color
	log       *zap.SugaredLogger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFace sets the tag font. The default is the 7x13 bitmap face.
func WithFace(face font.Face) Option {
	return func(r *Renderer) {
		if face != nil {
			r.face = face
		}
	}
}

// WithThickness sets the outline width.
func WithThickness(px int) Option {
	return func(r *Renderer) {
		if px > 0 {
			r.thickness = px
		}
	}
}

// WithLogger sets the logger receiving one line per drawn detection.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRenderer creates a renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		face:      basicfont.Face7x13,
		thickness: DefaultThickness,
		text:      color.White,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadFontFace parses a TrueType or OpenType font file into a face of the given size.
//
// Arguments:
//   - path: The font file.
//   - size: The size in points at 72 DPI.
//
// Returns:
//   - font.Face: The face. The caller closes it when done.
//   - error: An error if the file cannot be read or parsed.
func LoadFontFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Draw renders detections onto a copy of img. The input image is not modified.
//
// Each detection gets an outline in its class color (a rectangle for 4-value boxes,
// a closed quadrilateral for 8-value boxes) and a filled tag above its top-left corner
// carrying the label and score. Detections with malformed boxes are skipped.
//
// Arguments:
//   - img: The source image.
//   - detections: The detections in img pixel coordinates.
//
// Returns:
//   - *image.RGBA: The annotated copy.
func (r *Renderer) Draw(img image.Image, detections []postprocess.Detection) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	for _, det := range detections {
		if err := det.Validate(); err != nil {
			r.log.Warnw("skipping detection", "class_id", det.ClassID, "error", err)
			continue
		}

		c := ClassColor(det.ClassID)
		if det.IsQuad() {
			imageutil.DrawThickPolygonOutline(dst, det.Points(), r.thickness, c)
		} else {
			rect := image.Rect(int(det.Box[0]), int(det.Box[1]), int(det.Box[2]), int(det.Box[3]))
			imageutil.DrawThickRectOutline(dst, rect, c, r.thickness)
		}

		b := det.Bounds()
		r.drawTag(dst, int(b[0]), int(b[1]), fmt.Sprintf("%s %.4f", det.Label, det.Score), c)

		r.log.Infof("class_id:%d, label:%s, confidence:%.4f, left_top:[%.2f,%.2f], right_bottom:[%.2f,%.2f]",
			det.ClassID, det.Label, det.Score, b[0], b[1], b[2], b[3])
	}

	return dst
}

// TagSize returns the pixel extent of a tag's text.
func (r *Renderer) TagSize(text string) (width, height int) {
	return font.MeasureString(r.face, text).Ceil(), r.face.Metrics().Height.Ceil()
}

// drawTag fills the tag background from (x+1, y-h) to (x+w+1, y) and writes the text on it.
func (r *Renderer) drawTag(dst *image.RGBA, x, y int, text string, bg color.RGBA) {
	w, h := r.TagSize(text)
	rect := image.Rect(x+1, y-h, x+w+1, y)
	draw.Draw(dst, rect, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(r.text),
		Face: r.face,
		Dot:  fixed.Point26_6{X: fixed.I(x + 1), Y: fixed.I(y) - r.face.Metrics().Descent},
	}
	d.DrawString(text)
}

package rtdetr

import (
	"github.com/nvr-ai/go-rtdetr/models/labels"
	"github.com/nvr-ai/go-rtdetr/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultThreshold is the minimum score a detection must reach to be emitted.
const DefaultThreshold float32 = 0.5

// DecoderConfig defines the decoding parameters fixed at construction time.
type DecoderConfig struct {
	// Threshold is the minimum score, in [0, 1], for an emitted detection.
	Threshold float32 `json:"threshold" yaml:"threshold"`
	// Target is the model input size the raw box regressions are normalized to.
	Target TargetSize `json:"target"    yaml:"target"`
}

// DefaultDecoderConfig returns a 0.5 threshold at 640x640.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{Threshold: DefaultThreshold, Target: DefaultTargetSize}
}

// Decoder converts raw model output into labeled detections in original-image pixels.
//
// A Decoder has no per-call state. Decoding the same output with the same scale always
// yields the same detections.
type Decoder struct {
	cfg        DecoderConfig
	resolver   *labels.Resolver
	activation Activation
	log        *zap.SugaredLogger
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithResolver sets the label resolver. The default resolves to raw class ids.
func WithResolver(r *labels.Resolver) DecoderOption {
	return func(d *Decoder) {
		if r != nil {
			d.resolver = r
		}
	}
}

// WithActivation sets the activation applied to raw anchor logits.
func WithActivation(a Activation) DecoderOption {
	return func(d *Decoder) {
		if a != nil {
			d.activation = a
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) DecoderOption {
	return func(d *Decoder) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDecoder creates a new decoder.
//
// Arguments:
//   - cfg: The threshold and target size.
//   - opts: Optional resolver, activation and logger.
//
// Returns:
//   - *Decoder: The decoder.
//   - error: ErrInvalidConfig if the threshold is outside [0, 1] or the target size
//     is not positive.
func NewDecoder(cfg DecoderConfig, opts ...DecoderOption) (*Decoder, error) {
	if !(cfg.Threshold >= 0 && cfg.Threshold <= 1) {
		return nil, errors.Wrapf(ErrInvalidConfig, "threshold must be in [0, 1], got %v", cfg.Threshold)
	}
	if err := cfg.Target.Validate(); err != nil {
		return nil, err
	}

	d := &Decoder{
		cfg:        cfg,
		resolver:   labels.NewResolver(nil),
		activation: SigmoidActivation{},
		log:        zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the decoder configuration.
func (d *Decoder) Config() DecoderConfig {
	return d.cfg
}

// Decode converts raw model output into detections.
//
// PreDecoded rows are kept when their score reaches the threshold, with boxes taken
// verbatim and input order preserved. RawAnchors are activated, reduced to their best
// class, thresholded and mapped back to original-image pixels. No suppression of
// overlapping boxes is applied in either mode.
//
// Arguments:
//   - out: The model output.
//   - scale: The scale metadata of the image the output was computed from.
//
// Returns:
//   - []postprocess.Detection: The detections.
//   - error: ErrInvalidInput for an unusable output or scale, ErrIndexOutOfRange if a
//     class id has no label. No detections are returned on error.
func (d *Decoder) Decode(out RawOutput, scale ScaleMetadata) ([]postprocess.Detection, error) {
	switch o := out.(type) {
	case PreDecoded:
		return d.decodeRows(o.Rows)
	case *PreDecoded:
		if o == nil {
			break
		}
		return d.decodeRows(o.Rows)
	case RawAnchors:
		return d.decodeAnchors(o.Anchors, scale)
	case *RawAnchors:
		if o == nil {
			break
		}
		return d.decodeAnchors(o.Anchors, scale)
	}
	return nil, errors.Wrapf(ErrInvalidInput, "unsupported model output %T", out)
}

func (d *Decoder) decodeRows(rows []BoxRow) ([]postprocess.Detection, error) {
	detections := make([]postprocess.Detection, 0, len(rows))
	for i, row := range rows {
		score := row[1]
		if !(score >= d.cfg.Threshold) {
			continue
		}

		classID := int(row[0])
		label, err := d.resolver.Resolve(classID)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}

		detections = append(detections, postprocess.Detection{
			ClassID: classID,
			Label:   label,
			Score:   score,
			Box:     []float32{row[2], row[3], row[4], row[5]},
		})
	}
	return detections, nil
}

func (d *Decoder) decodeAnchors(anchors []Anchor, scale ScaleMetadata) ([]postprocess.Detection, error) {
	if !(scale.ScaleFactor.X > 0 && scale.ScaleFactor.Y > 0) {
		return nil, errors.Wrapf(ErrInvalidInput, "scale factors must be positive, got %+v", scale.ScaleFactor)
	}

	detections := make([]postprocess.Detection, 0)
	for i, anchor := range anchors {
		if len(anchor.Scores) == 0 {
			d.log.Debugw("skipping anchor with empty score vector", "anchor", i)
			continue
		}

		probs, err := d.activation.Apply(anchor.Scores)
		if err != nil {
			return nil, errors.Wrapf(err, "anchor %d", i)
		}
		if len(probs) != len(anchor.Scores) {
			return nil, errors.Wrapf(ErrInvalidInput, "anchor %d: activation returned %d of %d scores", i, len(probs), len(anchor.Scores))
		}
		classID, score := argmax(probs)
		if !(score >= d.cfg.Threshold) {
			continue
		}

		label, err := d.resolver.Resolve(classID)
		if err != nil {
			return nil, errors.Wrapf(err, "anchor %d", i)
		}

		detections = append(detections, postprocess.Detection{
			ClassID: classID,
			Label:   label,
			Score:   score,
			Box:     d.toPixels(anchor.Box, scale.ScaleFactor),
		})
	}
	return detections, nil
}

// toPixels maps a normalized [cx, cy, w, h] box to an original-image [x1, y1, x2, y2] box.
func (d *Decoder) toPixels(box [BoxSize]float32, s ScaleFactor) []float32 {
	targetW, targetH := float32(d.cfg.Target.Width), float32(d.cfg.Target.Height)

	cx := box[0] * targetW / s.X
	cy := box[1] * targetH / s.Y
	w := box[2] * targetW / s.X
	h := box[3] * targetH / s.Y

	return []float32{cx - w/2, cy - h/2, cx + w/2, cy + h/2}
}

// argmax returns the index and value of the largest element; the first wins ties.
func argmax(v []float32) (int, float32) {
	best, idx := v[0], 0
	for i := 1; i < len(v); i++ {
		if v[i] > best {
			best, idx = v[i], i
		}
	}
	return idx, best
}

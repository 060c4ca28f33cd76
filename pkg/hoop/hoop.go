package hoop

import (
	"errors"
	"fmt"
	"math"

	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
)

//DiameterMeters is the regulation inner diameter of a basketball rim (18 inches)
const DiameterMeters = 0.4572

//safe area padding around the hoop rect
const (
	safePaddingTop    = 100
	safePaddingLeft   = 100
	safePaddingRight  = 100
	safePaddingBottom = 50
)

var (
	ErrDegenerateHoop         = errors.New("hoop rect is degenerate")
	ErrCalibrationUnavailable = errors.New("hoop calibration unavailable")
)

//Region is the hoop rectangle in view space plus the expanded area used to filter out unrelated ball points
type Region struct {
	Rect     geometry.Rect `json:"rect"`
	SafeArea geometry.Rect `json:"safeArea"`
}

//NewRegion validates rect and derives its safe area
func NewRegion(rect geometry.Rect) (*Region, error) {
	if rect.IsEmpty() {
		return nil, fmt.Errorf("%w: %+v", ErrDegenerateHoop, rect)
	}
	return &Region{
		Rect:     rect,
		SafeArea: rect.Expand(safePaddingTop, safePaddingLeft, safePaddingBottom, safePaddingRight),
	}, nil
}

//Calibrator turns a measured hoop edge into a pixels-to-meters scale factor.
//The factor stays NaN until a measurement succeeds.
type Calibrator struct {
	diameter       float64
	metersPerPixel float64
}

func NewCalibrator() *Calibrator {
	return &Calibrator{diameter: DiameterMeters, metersPerPixel: math.NaN()}
}

//Calibrate computes the scale factor from the bounding box of the detected hoop edge contour (pixel units).
//A missing or degenerate contour leaves the calibrator untouched and returns false, the caller retries on a later frame.
func (c *Calibrator) Calibrate(contourBox *geometry.Rect) bool {
	if contourBox == nil || contourBox.IsEmpty() {
		return false
	}
	c.metersPerPixel = c.diameter / math.Hypot(contourBox.W, contourBox.H)
	return true
}

//Calibrated reports whether a scale factor is available
func (c *Calibrator) Calibrated() bool {
	return !math.IsNaN(c.metersPerPixel)
}

//MetersPerPixel returns the scale factor, NaN when unset
func (c *Calibrator) MetersPerPixel() float64 {
	return c.metersPerPixel
}

//Speed converts a speed in view units per second into meters per second
func (c *Calibrator) Speed(unitsPerSecond float64) (float64, error) {
	if !c.Calibrated() {
		return math.NaN(), ErrCalibrationUnavailable
	}
	if math.IsNaN(unitsPerSecond) || math.IsInf(unitsPerSecond, 0) {
		return math.NaN(), fmt.Errorf("non-finite speed %v", unitsPerSecond)
	}
	return unitsPerSecond * c.metersPerPixel, nil
}

//Reset drops the scale factor back to unset
func (c *Calibrator) Reset() {
	c.metersPerPixel = math.NaN()
}

package profile

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/taply/backend/internal/models"
)

var percentPair = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*%\s*(\d+(?:\.\d+)?)\s*%?$`)

var positionPresets = map[string][2]float64{
	"left top":      {0, 0},
	"center top":    {50, 0},
	"right top":     {100, 0},
	"left center":   {0, 50},
	"center center": {50, 50},
	"center":        {50, 50},
	"right center":  {100, 50},
	"left bottom":   {0, 100},
	"center bottom": {50, 100},
	"right bottom":  {100, 100},
}

// ParsePosition reads a CSS background-position as percentages in [0,100].
// Anything unrecognised is the centre.
func ParsePosition(pos string) (x, y float64) {
	s := strings.ToLower(strings.TrimSpace(pos))
	if m := percentPair.FindStringSubmatch(s); m != nil {
		x, _ = strconv.ParseFloat(m[1], 64)
		y, _ = strconv.ParseFloat(m[2], 64)
		return clampFloat(x, 0, 100), clampFloat(y, 0, 100)
	}
	if p, ok := positionPresets[s]; ok {
		return p[0], p[1]
	}
	return 50, 50
}

// FormatPosition renders percentages as the canonical "X% Y%" form.
func FormatPosition(x, y float64) string {
	return fmt.Sprintf("%d%% %d%%", int(math.Round(clampFloat(x, 0, 100))), int(math.Round(clampFloat(y, 0, 100))))
}

// CanonicalPosition is FormatPosition(ParsePosition(pos)).
func CanonicalPosition(pos string) string {
	return FormatPosition(ParsePosition(pos))
}

// ClampZoom bounds a zoom percentage to the supported range.
func ClampZoom(zoom int) int {
	if zoom < models.MinBackgroundZoom {
		return models.MinBackgroundZoom
	}
	if zoom > models.MaxBackgroundZoom {
		return models.MaxBackgroundZoom
	}
	return zoom
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

package label

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/liframe/internal/frame"
)

var openPCDetColor = frame.Color{R: 0, G: 1, B: 0}

// ParseOpenPCDet reads "x y z dx dy dz heading class" lines in LiDAR
// coordinates. calib is unused.
func ParseOpenPCDet(data []byte, _ *frame.Calibration) ([]frame.Label, error) {
	var out []frame.Label
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		parts := strings.Fields(sc.Text())
		if len(parts) == 0 {
			continue
		}
		if len(parts) < 8 {
			return nil, fmt.Errorf("openpcdet label: line %d has %d fields, want 8", line, len(parts))
		}
		var v [7]float64
		for i := range v {
			f, err := strconv.ParseFloat(parts[i], 64)
			if err != nil {
				return nil, fmt.Errorf("openpcdet label: line %d field %d: %w", line, i+1, err)
			}
			v[i] = f
		}
		out = append(out, frame.Label{
			Class: parts[7],
			Box: frame.BBox3D{
				Center: [3]float64{v[0], v[1], v[2]},
				Extent: [3]float64{v[3], v[4], v[5]},
				Euler:  [3]float64{0, 0, v[6]},
				Color:  openPCDetColor,
			},
		})
	}
	return out, sc.Err()
}

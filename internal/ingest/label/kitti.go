package label

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/liframe/internal/frame"
)

var kittiColors = map[string]frame.Color{
	"Car":            {R: 0, G: 1, B: 0},
	"Van":            {R: 0, G: 1, B: 0},
	"Truck":          {R: 0, G: 1, B: 0},
	"Pedestrian":     {R: 1, G: 0, B: 0},
	"Person_sitting": {R: 1, G: 0, B: 0},
	"Cyclist":        {R: 0, G: 0, B: 1},
	"Tram":           {R: 1, G: 1, B: 0},
	"Misc":           {R: 1, G: 1, B: 0},
	"DontCare":       {R: 1, G: 1, B: 1},
}

// ParseKITTI reads KITTI object labels. Boxes are given in camera
// coordinates and are moved into the LiDAR frame through the inverse of
// Tr_velo_to_cam, so the calibration is required: without one the result is
// empty.
func ParseKITTI(data []byte, calib *frame.Calibration) ([]frame.Label, error) {
	if calib == nil || calib.TrVeloToCam == nil {
		return nil, nil
	}
	var camToLidar mat.Dense
	if err := camToLidar.Inverse(calib.TrVeloToCam); err != nil {
		return nil, fmt.Errorf("kitti label: invert Tr_velo_to_cam: %w", err)
	}

	var out []frame.Label
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		parts := strings.Fields(sc.Text())
		if len(parts) == 0 {
			continue
		}
		if len(parts) < 15 {
			return nil, fmt.Errorf("kitti label: line %d has %d fields, want 15", line, len(parts))
		}
		vals := make([]float64, 14)
		for i := range vals {
			v, err := strconv.ParseFloat(parts[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("kitti label: line %d field %d: %w", line, i+2, err)
			}
			vals[i] = v
		}
		// vals: truncation occlusion alpha left top right bottom h w l x y z ry
		h, w, l := vals[7], vals[8], vals[9]
		cam := mat.NewVecDense(4, []float64{vals[10], vals[11], vals[12], 1})
		var lidar mat.VecDense
		lidar.MulVec(&camToLidar, cam)

		class := parts[0]
		color, ok := kittiColors[class]
		if !ok {
			color = frame.White
		}
		box := frame.BBox3D{
			Center: [3]float64{lidar.AtVec(0), lidar.AtVec(1), lidar.AtVec(2) + h/2},
			Extent: [3]float64{w, l, h},
			Euler:  [3]float64{0, 0, -vals[13]},
			Color:  color,
		}
		camBox := box
		out = append(out, frame.Label{
			Class:     class,
			Box:       box,
			CameraBox: &camBox,
			Image: &frame.ImageAnnotation{
				Truncated: vals[0],
				Occluded:  int(vals[1]),
				Alpha:     vals[2],
				Box2D:     [4]float64{vals[3], vals[4], vals[5], vals[6]},
			},
		})
	}
	return out, sc.Err()
}

package label

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/liframe/internal/frame"
)

func rgb255(r, g, b float64) frame.Color { return frame.Color{R: r / 255, G: g / 255, B: b / 255} }

var sustechColors = map[string]frame.Color{
	"Car":          rgb255(0, 255, 0),
	"Van":          rgb255(0, 255, 0),
	"Bus":          rgb255(0, 255, 255),
	"Pedestrian":   rgb255(0, 0, 255),
	"Rider":        rgb255(0, 136, 255),
	"Cyclist":      rgb255(0, 136, 255),
	"Bicycle":      rgb255(0, 255, 136),
	"BicycleGroup": rgb255(0, 255, 136),
	"Motor":        rgb255(0, 176, 176),
	"Truck":        rgb255(255, 255, 0),
	"Tram":         rgb255(255, 255, 0),
	"Animal":       rgb255(255, 176, 0),
	"Misc":         rgb255(136, 136, 0),
	"Unknown":      rgb255(136, 136, 0),
}

type xyz struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type sustechObject struct {
	ObjType string `json:"obj_type"`
	PSR     struct {
		Position xyz `json:"position"`
		Rotation xyz `json:"rotation"`
		Scale    xyz `json:"scale"`
	} `json:"psr"`
}

// ParseSUSTechPOINTS reads a SUSTechPOINTS annotation array. Unknown object
// types are drawn black. calib is unused.
func ParseSUSTechPOINTS(data []byte, _ *frame.Calibration) ([]frame.Label, error) {
	var objs []sustechObject
	if err := json.Unmarshal(data, &objs); err != nil {
		return nil, fmt.Errorf("sustechpoints label: %w", err)
	}
	out := make([]frame.Label, 0, len(objs))
	for _, o := range objs {
		p := o.PSR
		box := frame.BBox3D{
			Center: [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
			Extent: [3]float64{p.Scale.X, p.Scale.Y, p.Scale.Z},
			Euler:  [3]float64{p.Rotation.X, p.Rotation.Y, p.Rotation.Z},
			Color:  sustechColors[o.ObjType],
		}
		camBox := box
		out = append(out, frame.Label{Class: o.ObjType, Box: box, CameraBox: &camBox})
	}
	return out, nil
}

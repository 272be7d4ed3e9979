package algo

import (
	"fmt"
	"strings"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
)

// FrameSummary logs which records the frame carries.
func FrameSummary(fc *frame.Context, _ *config.Config) error {
	parts := []string{fmt.Sprintf("frame %d/%d", fc.Index, fc.MaxIndex)}
	if fc.Cloud != nil {
		parts = append(parts, fmt.Sprintf("lidar=%d points", fc.Cloud.Len()))
	}
	if fc.Image != nil {
		b := fc.Image.Bounds()
		parts = append(parts, fmt.Sprintf("camera=%dx%d", b.Dx(), b.Dy()))
	}
	if fc.Calib != nil {
		parts = append(parts, "calib")
	}
	if fc.Labels != nil {
		parts = append(parts, fmt.Sprintf("labels=%d", fc.Labels.Len()))
	}
	if len(parts) == 1 {
		parts = append(parts, "no records")
	}
	fc.Log.Infof("%s", strings.Join(parts, " "))
	return nil
}

package frame

import (
	"github.com/banshee-data/liframe/internal/logging"
)

// Context is the mutable record a frame carries through the pipeline. A nil
// modality field means the modality is disabled or has no record at Index.
// Accumulator state survives across frames until Reset.
type Context struct {
	Index    int
	MaxIndex int

	Cloud  *Cloud
	Image  *Image
	Calib  *Calibration
	Labels *LabelSet

	Log *logging.Logger

	acc *accumulators
}

// NewContext returns an empty context logging to log.
func NewContext(log *logging.Logger) *Context {
	return &Context{Log: log}
}

// Reset drops every record and all accumulator state.
func (c *Context) Reset() {
	c.Index = 0
	c.MaxIndex = 0
	c.Cloud = nil
	c.Image = nil
	c.Calib = nil
	c.Labels = nil
	c.acc = nil
}

// Present lists which modality fields are populated, in pipeline order.
func (c *Context) Present() []string {
	var out []string
	if c.Cloud != nil {
		out = append(out, "lidar")
	}
	if c.Image != nil {
		out = append(out, "camera")
	}
	if c.Calib != nil {
		out = append(out, "calib")
	}
	if c.Labels != nil {
		out = append(out, "label")
	}
	return out
}

package algo

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/frame"
	"github.com/banshee-data/liframe/internal/ingest/pointcloud"
)

const (
	pcdetDir          = "pcdet_dataset"
	perObjectPCDetDir = "per_object_pcdet_dataset"
)

func outputDir(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Data.Path, "output", "post", name)
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// pcdetLine renders "x y z dx dy dz yaw class".
func pcdetLine(center [3]float64, l frame.Label) string {
	class := l.Class
	if class == "" {
		class = "Unknown"
	}
	fields := []string{
		formatFloat(center[0]), formatFloat(center[1]), formatFloat(center[2]),
		formatFloat(l.Box.Extent[0]), formatFloat(l.Box.Extent[1]), formatFloat(l.Box.Extent[2]),
		formatFloat(l.Box.Euler[2]),
		class,
	}
	return strings.Join(fields, " ")
}

func (b *Builtins) prepare(cfg *config.Config, name string) (clouds, labels string, err error) {
	root := outputDir(cfg, name)
	clouds = filepath.Join(root, "point_cloud")
	labels = filepath.Join(root, "label")
	for _, d := range []string{clouds, labels} {
		if err := b.FS.MkdirAll(d, 0o755); err != nil {
			return "", "", fmt.Errorf("create %s: %w", d, err)
		}
	}
	return clouds, labels, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CreatePCDetDataset writes the frame's cloud as .npy and its labels in
// OpenPCDet text form, both named after the label file.
func (b *Builtins) CreatePCDetDataset(fc *frame.Context, cfg *config.Config) error {
	switch {
	case fc.Cloud == nil:
		return missing(fc, "create_pcdet_dataset", "point cloud")
	case fc.Labels == nil || fc.Labels.Path == "":
		return missing(fc, "create_pcdet_dataset", "label list")
	}
	cloudDir, labelDir, err := b.prepare(cfg, pcdetDir)
	if err != nil {
		return err
	}
	name := stem(fc.Labels.Path)
	if err := b.FS.WriteFile(filepath.Join(cloudDir, name+".npy"), pointcloud.EncodeNPY(fc.Cloud.Points), 0o644); err != nil {
		return err
	}
	var sb strings.Builder
	for _, l := range fc.Labels.Labels {
		sb.WriteString(pcdetLine(l.Box.Center, l))
		sb.WriteByte('\n')
	}
	return b.FS.WriteFile(filepath.Join(labelDir, name+".txt"), []byte(sb.String()), 0o644)
}

// CreatePerObjectPCDetDataset writes one sample per label: the points inside
// the label's box, centred on their mean, and the box shifted by the same
// offset. Files are suffixed with the zero-padded label index.
func (b *Builtins) CreatePerObjectPCDetDataset(fc *frame.Context, cfg *config.Config) error {
	switch {
	case fc.Cloud == nil:
		return missing(fc, "create_per_object_pcdet_dataset", "point cloud")
	case fc.Labels == nil || fc.Labels.Path == "":
		return missing(fc, "create_per_object_pcdet_dataset", "label list")
	}
	cloudDir, labelDir, err := b.prepare(cfg, perObjectPCDetDir)
	if err != nil {
		return err
	}
	name := stem(fc.Labels.Path)
	for i, l := range fc.Labels.Labels {
		var inside []frame.Point
		for _, p := range fc.Cloud.Points {
			if l.Box.Contains(p) {
				inside = append(inside, p)
			}
		}
		if len(inside) == 0 {
			fc.Log.Warnf("create_per_object_pcdet_dataset: label %d (%s) has no points, skipping", i, l.Class)
			continue
		}
		var mean [3]float64
		for _, p := range inside {
			mean[0] += p.X
			mean[1] += p.Y
			mean[2] += p.Z
		}
		n := float64(len(inside))
		for k := range mean {
			mean[k] /= n
		}
		for j := range inside {
			inside[j].X -= mean[0]
			inside[j].Y -= mean[1]
			inside[j].Z -= mean[2]
		}
		center := [3]float64{l.Box.Center[0] - mean[0], l.Box.Center[1] - mean[1], l.Box.Center[2] - mean[2]}

		objName := fmt.Sprintf("%s%04d", name, i)
		if err := b.FS.WriteFile(filepath.Join(cloudDir, objName+".npy"), pointcloud.EncodeNPY(inside), 0o644); err != nil {
			return err
		}
		if err := b.FS.WriteFile(filepath.Join(labelDir, objName+".txt"), []byte(pcdetLine(center, l)+"\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

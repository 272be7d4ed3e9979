package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Group names a processing stage group.
type Group string

const (
	GroupPre    Group = "pre"
	GroupLidar  Group = "lidar"
	GroupCamera Group = "camera"
	GroupCalib  Group = "calib"
	GroupLabel  Group = "label"
	GroupPost   Group = "post"
)

// Groups is the fixed execution order.
var Groups = []Group{GroupPre, GroupLidar, GroupCamera, GroupCalib, GroupLabel, GroupPost}

// Modality returns the source a group depends on. Pre and post have none.
func (g Group) Modality() (Modality, bool) {
	switch g {
	case GroupLidar:
		return ModalityLidar, true
	case GroupCamera:
		return ModalityCamera, true
	case GroupCalib:
		return ModalityCalib, true
	case GroupLabel:
		return ModalityLabel, true
	}
	return "", false
}

// Proc holds the stage entries of every group.
type Proc struct {
	Pre    Stages `yaml:"pre"`
	Lidar  Stages `yaml:"lidar"`
	Camera Stages `yaml:"camera"`
	Calib  Stages `yaml:"calib"`
	Label  Stages `yaml:"label"`
	Post   Stages `yaml:"post"`
}

// Group returns the entries for g in declaration order.
func (p Proc) Group(g Group) Stages {
	switch g {
	case GroupPre:
		return p.Pre
	case GroupLidar:
		return p.Lidar
	case GroupCamera:
		return p.Camera
	case GroupCalib:
		return p.Calib
	case GroupLabel:
		return p.Label
	case GroupPost:
		return p.Post
	}
	return nil
}

// Stage looks up one entry by group and name.
func (p Proc) Stage(g Group, name string) (StageConfig, bool) {
	for _, s := range p.Group(g) {
		if s.Name == name {
			return s, true
		}
	}
	return StageConfig{}, false
}

// StageConfig is one entry under proc.<group>. Keys other than enabled and
// priority are stage parameters, read with Decode.
type StageConfig struct {
	Name     string
	Enabled  bool
	Priority int
	params   yaml.Node
}

// NewStageConfig builds an entry programmatically. params may be nil.
func NewStageConfig(name string, priority int, enabled bool, params interface{}) (StageConfig, error) {
	sc := StageConfig{Name: name, Priority: priority, Enabled: enabled}
	if params != nil {
		if err := sc.params.Encode(params); err != nil {
			return StageConfig{}, fmt.Errorf("encode params for %s: %w", name, err)
		}
	}
	return sc, nil
}

// Decode unmarshals the entry's parameters into v. Missing parameters leave v untouched.
func (s StageConfig) Decode(v interface{}) error {
	if s.params.Kind == 0 {
		return nil
	}
	if err := s.params.Decode(v); err != nil {
		return fmt.Errorf("stage %s params: %w", s.Name, err)
	}
	return nil
}

// Stages is an ordered list of stage entries decoded from a YAML mapping.
type Stages []StageConfig

type stageHeader struct {
	Enabled  *bool `yaml:"enabled"`
	Priority int   `yaml:"priority"`
}

// UnmarshalYAML keeps mapping order so equal priorities run in declaration order.
func (s *Stages) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*s = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: stage group must be a mapping", value.Line)
	}
	out := make(Stages, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, body := value.Content[i], value.Content[i+1]
		sc := StageConfig{Name: key.Value, Enabled: true}
		if !(body.Kind == yaml.ScalarNode && body.Tag == "!!null") {
			if body.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: stage %q must be a mapping", body.Line, key.Value)
			}
			var h stageHeader
			if err := body.Decode(&h); err != nil {
				return fmt.Errorf("stage %q: %w", key.Value, err)
			}
			if h.Enabled != nil {
				sc.Enabled = *h.Enabled
			}
			sc.Priority = h.Priority
			sc.params = *body
		}
		out = append(out, sc)
	}
	*s = out
	return nil
}

package playout

import (
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/timeline"
)

// BaselineConfig matches the YAML file describing each studio's resting
// state: the objects that are always on the timeline under everything else
// (default camera on program, idle graphics, silence on audio).
type BaselineConfig struct {
	Studios map[string][]BaselineObject `yaml:"studios"`
}

type BaselineObject struct {
	ID       string                 `yaml:"id"`
	Layer    string                 `yaml:"layer"`
	Priority int                    `yaml:"priority"`
	Enable   BaselineEnable         `yaml:"enable"`
	Classes  []string               `yaml:"classes"`
	Content  map[string]interface{} `yaml:"content"`
}

type BaselineEnable struct {
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Duration string `yaml:"duration"`
	While    string `yaml:"while"`
}

var (
	currentBaseline *BaselineConfig
	baselineMu      sync.RWMutex
)

func LoadBaseline(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cfg BaselineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	baselineMu.Lock()
	currentBaseline = &cfg
	baselineMu.Unlock()

	log.Printf("📺 Baseline Loaded: %d studios", len(cfg.Studios))
	return nil
}

// GetBaselineObjects returns the baseline timeline objects for a studio.
// Without a loaded baseline the timeline is simply built without one.
func GetBaselineObjects(studioID string) []timeline.Object {
	baselineMu.RLock()
	defer baselineMu.RUnlock()

	if currentBaseline == nil {
		return nil
	}
	raw, ok := currentBaseline.Studios[studioID]
	if !ok {
		return nil
	}

	objs := make([]timeline.Object, 0, len(raw))
	for _, b := range raw {
		enable := timeline.Enable{
			Start:    parseInstantLenient("baseline "+b.ID, b.Enable.Start),
			End:      parseInstantLenient("baseline "+b.ID, b.Enable.End),
			Duration: parseInstantLenient("baseline "+b.ID, b.Enable.Duration),
			While:    parseInstantLenient("baseline "+b.ID, b.Enable.While),
		}
		if !enable.Start.IsSet() && !enable.While.IsSet() {
			enable.While = timeline.Absolute(1)
		}
		objs = append(objs, timeline.Object{
			ID:       b.ID,
			Enable:   enable,
			Layer:    b.Layer,
			Priority: b.Priority,
			StudioID: studioID,
			Classes:  b.Classes,
			Content:  b.Content,
		})
	}
	return objs
}

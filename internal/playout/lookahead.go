package playout

import (
	"github.com/chrisryanouellette/tv-automation-server-core/internal/timeline"
)

// GetLookaheadObjects builds shadow copies of the next part's device
// objects so gateways can preload media before the take. They live on
// "<layer>_lookahead" shadow layers and never collide with on-air objects.
func GetLookaheadObjects(data *RundownInstancesData) []timeline.Object {
	if data.Next == nil {
		return nil
	}

	var objs []timeline.Object
	for i := range data.Next.Pieces {
		pi := &data.Next.Pieces[i]
		if pi.Disabled || pi.Virtual {
			continue
		}
		// Infinites continuing from the current part are already on air.
		if pi.IsInfiniteContinuation() {
			continue
		}
		for _, c := range decodeContentObjects(pi) {
			if c.Layer == "" {
				continue
			}
			objs = append(objs, timeline.Object{
				ID:         "lookahead_" + c.ID + "_" + pi.ID,
				Enable:     timeline.Enable{While: timeline.Absolute(1)},
				Layer:      c.Layer + "_lookahead",
				Priority:   -10,
				ObjectType: timeline.ObjectTypeRundown,
				RundownID:  pi.RundownID,
				Classes:    []string{"lookahead"},
				Content:    c.Content,
			})
		}
	}
	return objs
}

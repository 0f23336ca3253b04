package playout

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
)

// ErrPartInstanceNotFound is the consistency error raised when a rundown
// points at a PartInstance that does not exist. Callers must abort the
// update rather than write a partial timeline.
var ErrPartInstanceNotFound = errors.New("part instance not found")

// PartInstanceData is one playback position with its pieces.
type PartInstanceData struct {
	Part   models.PartInstance
	Pieces []models.PieceInstance
}

// RundownInstancesData is a consistent snapshot of everything the timeline
// builder needs. It is read fresh for every build and never shared between
// concurrent passes.
type RundownInstancesData struct {
	Rundown  models.Rundown
	Previous *PartInstanceData
	Current  *PartInstanceData
	Next     *PartInstanceData

	// OriginalInfinites maps infiniteId to the original instance (the one
	// whose PieceID equals the infiniteId) that anchors the absolute start
	// time of every continuation.
	OriginalInfinites map[string]models.PieceInstance
}

// FetchRundownInstancesData loads the previous/current/next part instances
// and their pieces. A dangling instance pointer is a fatal consistency
// error, not a silent empty result.
func FetchRundownInstancesData(db *gorm.DB, rundown models.Rundown) (*RundownInstancesData, error) {
	ids := make([]string, 0, 3)
	for _, id := range []*string{rundown.PreviousPartInstanceID, rundown.CurrentPartInstanceID, rundown.NextPartInstanceID} {
		if id != nil {
			ids = append(ids, *id)
		}
	}

	data := &RundownInstancesData{
		Rundown:           rundown,
		OriginalInfinites: map[string]models.PieceInstance{},
	}
	if len(ids) == 0 {
		return data, nil
	}

	var instances []models.PartInstance
	if err := db.Where("id IN ?", ids).Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("fetching part instances for rundown %q: %w", rundown.ID, err)
	}
	instanceMap := make(map[string]models.PartInstance, len(instances))
	for _, pi := range instances {
		instanceMap[pi.ID] = pi
	}

	var pieces []models.PieceInstance
	if err := db.Where("part_instance_id IN ?", ids).Order("rank asc, id asc").Find(&pieces).Error; err != nil {
		return nil, fmt.Errorf("fetching piece instances for rundown %q: %w", rundown.ID, err)
	}
	piecesFor := func(partInstanceID string) []models.PieceInstance {
		var out []models.PieceInstance
		for _, p := range pieces {
			if p.PartInstanceID == partInstanceID {
				out = append(out, p)
			}
		}
		return out
	}

	get := func(id *string) (*PartInstanceData, error) {
		if id == nil {
			return nil, nil
		}
		pi, ok := instanceMap[*id]
		if !ok {
			return nil, fmt.Errorf("%w: %q (rundown %q)", ErrPartInstanceNotFound, *id, rundown.ID)
		}
		return &PartInstanceData{Part: pi, Pieces: piecesFor(pi.ID)}, nil
	}

	var err error
	// Fetch next first: whether current gets a bounded duration depends on it.
	if data.Next, err = get(rundown.NextPartInstanceID); err != nil {
		return nil, err
	}
	if data.Current, err = get(rundown.CurrentPartInstanceID); err != nil {
		return nil, err
	}
	if data.Current != nil {
		if data.Previous, err = get(rundown.PreviousPartInstanceID); err != nil {
			return nil, err
		}
	}

	if err := loadOriginalInfinites(db, data); err != nil {
		return nil, err
	}
	return data, nil
}

// loadOriginalInfinites finds, for every continuing infinite in the current
// and next parts, the instance that started the infinite and has real
// playback timing on it.
func loadOriginalInfinites(db *gorm.DB, data *RundownInstancesData) error {
	var infiniteIDs []string
	seen := map[string]bool{}
	for _, pd := range []*PartInstanceData{data.Current, data.Next} {
		if pd == nil {
			continue
		}
		for i := range pd.Pieces {
			p := &pd.Pieces[i]
			if p.IsInfiniteContinuation() && !seen[p.InfiniteID] {
				seen[p.InfiniteID] = true
				infiniteIDs = append(infiniteIDs, p.InfiniteID)
			}
		}
	}
	if len(infiniteIDs) == 0 {
		return nil
	}

	var originals []models.PieceInstance
	err := db.
		Where("piece_id IN ? AND infinite_id = piece_id AND started_playback IS NOT NULL", infiniteIDs).
		Order("started_playback asc").
		Find(&originals).Error
	if err != nil {
		return fmt.Errorf("fetching original infinite instances: %w", err)
	}
	for _, o := range originals {
		if _, ok := data.OriginalInfinites[o.InfiniteID]; !ok {
			data.OriginalInfinites[o.InfiniteID] = o
		}
	}
	return nil
}

package playout

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
)

// firstValidPart returns the first non-invalid part of a rundown in global
// order (segment rank, then part rank).
func firstValidPart(db *gorm.DB, rundownID string) (*models.Part, error) {
	var part models.Part
	err := db.
		Joins("JOIN segments ON segments.id = parts.segment_id").
		Where("parts.rundown_id = ? AND parts.invalid = ?", rundownID, false).
		Order("segments.rank asc, parts.rank asc").
		First(&part).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding first part of rundown %q: %w", rundownID, err)
	}
	return &part, nil
}

// partAfter returns the next non-invalid part following the given one, or
// nil at the end of the rundown.
func partAfter(db *gorm.DB, rundownID string, after *models.Part) (*models.Part, error) {
	var segment models.Segment
	if err := db.First(&segment, "id = ?", after.SegmentID).Error; err != nil {
		return nil, fmt.Errorf("finding segment %q: %w", after.SegmentID, err)
	}

	var part models.Part
	err := db.
		Joins("JOIN segments ON segments.id = parts.segment_id").
		Where("parts.rundown_id = ? AND parts.invalid = ?", rundownID, false).
		Where("segments.rank > ? OR (segments.rank = ? AND parts.rank > ?)", segment.Rank, segment.Rank, after.Rank).
		Order("segments.rank asc, parts.rank asc").
		First(&part).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding part after %q: %w", after.ID, err)
	}
	return &part, nil
}

func materializePartInstance(part *models.Part) models.PartInstance {
	return models.PartInstance{
		ID:                          uuid.NewString(),
		PartID:                      part.ID,
		RundownID:                   part.RundownID,
		SegmentID:                   part.SegmentID,
		Rank:                        part.Rank,
		Title:                       part.Title,
		ExpectedDuration:            part.ExpectedDuration,
		AutoNext:                    part.AutoNext,
		AutoNextOverlap:             part.AutoNextOverlap,
		PrerollDuration:             part.PrerollDuration,
		TransitionPrerollDuration:   part.TransitionPrerollDuration,
		TransitionKeepaliveDuration: part.TransitionKeepaliveDuration,
		DisableOutTransition:        part.DisableOutTransition,
		Classes:                     part.Classes,
		ClassesForNext:              part.ClassesForNext,
	}
}

func materializePieceInstance(piece *models.Piece, partInstanceID string) models.PieceInstance {
	infiniteID := ""
	if piece.InfiniteMode != models.LifespanNormal {
		infiniteID = piece.ID
	}
	return models.PieceInstance{
		ID:             uuid.NewString(),
		PieceID:        piece.ID,
		PartInstanceID: partInstanceID,
		RundownID:      piece.RundownID,
		Rank:           piece.Rank,
		Name:           piece.Name,
		SourceLayerID:  piece.SourceLayerID,
		OutputLayerID:  piece.OutputLayerID,
		EnableStart:    piece.EnableStart,
		EnableEnd:      piece.EnableEnd,
		EnableDuration: piece.EnableDuration,
		InfiniteMode:   piece.InfiniteMode,
		InfiniteID:     infiniteID,
		IsTransition:   piece.IsTransition,
		Virtual:        piece.Virtual,
		ContentObjects: piece.ContentObjects,
	}
}

// continuationsInto returns continuation piece instances for every infinite
// on air in the current part whose lifespan reaches into the next part.
// Planned pieces of the next part shadow a continuation that shares their
// infinite identity.
func continuationsInto(db *gorm.DB, rundown *models.Rundown, nextPart *models.Part, nextInstanceID string, planned []models.PieceInstance) ([]models.PieceInstance, error) {
	if rundown.CurrentPartInstanceID == nil {
		return nil, nil
	}
	var current models.PartInstance
	if err := db.First(&current, "id = ?", *rundown.CurrentPartInstanceID).Error; err != nil {
		return nil, fmt.Errorf("finding current part instance: %w", err)
	}
	var onAir []models.PieceInstance
	err := db.
		Where("part_instance_id = ?", current.ID).
		Order("rank asc, id asc").
		Find(&onAir).Error
	if err != nil {
		return nil, fmt.Errorf("finding on-air pieces: %w", err)
	}

	plannedInfinites := map[string]bool{}
	for _, p := range planned {
		if p.InfiniteID != "" {
			plannedInfinites[p.InfiniteID] = true
		}
	}

	var out []models.PieceInstance
	for _, r := range ResolvedPieceInstances(onAir) {
		src := r.Instance
		if src.InfiniteID == "" {
			continue
		}
		// An infinite with a concrete end inside the current part was
		// replaced or capped on its layer; nothing is left to continue.
		if r.Duration != nil {
			continue
		}
		switch src.InfiniteMode {
		case models.LifespanOnRundownEnd:
			// continues
		case models.LifespanOnSegmentEnd:
			if current.SegmentID != nextPart.SegmentID {
				continue
			}
		default:
			continue
		}
		if plannedInfinites[src.InfiniteID] {
			continue
		}
		cont := src
		cont.ID = uuid.NewString()
		// A derived PieceID keeps the original instance (PieceID equal to
		// InfiniteID) distinguishable from its continuations.
		cont.PieceID = src.InfiniteID + "_" + nextPart.ID
		cont.PartInstanceID = nextInstanceID
		cont.EnableStart = "0"
		cont.EnableEnd = ""
		cont.EnableDuration = ""
		cont.StartedPlayback = nil
		cont.PlayoutDuration = nil
		cont.UserDurationEnd = src.UserDurationEnd
		cont.UserDurationDuration = src.UserDurationDuration
		out = append(out, cont)
	}
	return out, nil
}

// SetNextPart materializes a PartInstance (and its PieceInstances,
// including infinite continuations) for the given part and points the
// rundown's next at it. A nil part clears the next.
func SetNextPart(db *gorm.DB, clock Clock, rundown *models.Rundown, nextPart *models.Part, setManually bool, nextTimeOffset *int64) error {
	if nextPart == nil {
		rundown.NextPartInstanceID = nil
		rundown.NextPartManual = false
		rundown.NextTimeOffset = nil
		return db.Save(rundown).Error
	}

	if nextPart.RundownID != rundown.ID {
		return fmt.Errorf("part %q is not part of rundown %q", nextPart.ID, rundown.ID)
	}
	if nextPart.Invalid {
		return fmt.Errorf("part %q is invalid, cannot set as next", nextPart.ID)
	}

	instance := materializePartInstance(nextPart)
	now := nowMs(clock)
	instance.NextTime = &now

	var pieces []models.Piece
	if err := db.Where("part_id = ?", nextPart.ID).Order("rank asc, id asc").Find(&pieces).Error; err != nil {
		return fmt.Errorf("finding pieces of part %q: %w", nextPart.ID, err)
	}
	pieceInstances := make([]models.PieceInstance, 0, len(pieces))
	for i := range pieces {
		pieceInstances = append(pieceInstances, materializePieceInstance(&pieces[i], instance.ID))
	}
	continued, err := continuationsInto(db, rundown, nextPart, instance.ID, pieceInstances)
	if err != nil {
		return err
	}
	pieceInstances = append(pieceInstances, continued...)

	oldNextID := rundown.NextPartInstanceID

	return db.Transaction(func(tx *gorm.DB) error {
		// A replaced, never-taken next instance is dead weight.
		if oldNextID != nil && (rundown.CurrentPartInstanceID == nil || *oldNextID != *rundown.CurrentPartInstanceID) {
			if err := tx.Model(&models.PartInstance{}).Where("id = ?", *oldNextID).Update("is_reset", true).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&instance).Error; err != nil {
			return err
		}
		if len(pieceInstances) > 0 {
			if err := tx.Create(&pieceInstances).Error; err != nil {
				return err
			}
		}
		rundown.NextPartInstanceID = &instance.ID
		rundown.NextPartManual = setManually
		rundown.NextTimeOffset = nextTimeOffset
		return tx.Save(rundown).Error
	})
}

// onPartInstanceStoppedPlaying stamps the final playback duration once.
func onPartInstanceStoppedPlaying(db *gorm.DB, pi *models.PartInstance, at int64) error {
	if pi.StartedPlayback == nil || pi.Duration != nil {
		return nil
	}
	d := at - *pi.StartedPlayback
	pi.Duration = &d
	return db.Model(&models.PartInstance{}).Where("id = ?", pi.ID).Update("duration", d).Error
}

// ResetRundown discards all playback state of a rundown. Active rundowns
// get a fresh next pointed at the first part.
func ResetRundown(db *gorm.DB, clock Clock, rundown *models.Rundown) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PartInstance{}).Where("rundown_id = ?", rundown.ID).Update("is_reset", true).Error; err != nil {
			return err
		}
		if err := tx.Where("rundown_id = ?", rundown.ID).Delete(&models.PieceInstance{}).Error; err != nil {
			return err
		}
		rundown.PreviousPartInstanceID = nil
		rundown.CurrentPartInstanceID = nil
		rundown.NextPartInstanceID = nil
		rundown.HoldState = models.HoldStateNone
		rundown.StartedPlayback = nil
		rundown.NextTimeOffset = nil
		return tx.Save(rundown).Error
	})
	if err != nil {
		return err
	}

	if !rundown.Active {
		return nil
	}
	first, err := firstValidPart(db, rundown.ID)
	if err != nil {
		return err
	}
	if first == nil {
		return nil
	}
	return SetNextPart(db, clock, rundown, first, false, nil)
}

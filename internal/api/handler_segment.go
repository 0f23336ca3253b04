package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
	"github.com/chrisryanouellette/tv-automation-server-core/internal/segmentview"
)

// GetResolvedSegment returns the UI-facing projection of one segment:
// rendered piece timings, display-duration widths, crop and live/next
// flags.
func (s *Server) GetResolvedSegment(c *gin.Context) {
	segmentID := c.Param("id")

	var segment models.Segment
	err := s.db.DB.First(&segment, "id = ?", segmentID).Error
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "segment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	args, err := s.buildSegmentArgs(segment)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, segmentview.Project(*args))
}

// buildSegmentArgs gathers one consistent read of everything the projector
// needs: the segment's parts and pieces, the layer catalogs, and the
// rundown's playback position mapped back to part ids.
func (s *Server) buildSegmentArgs(segment models.Segment) (*segmentview.Args, error) {
	args := &segmentview.Args{
		Segment:                segment,
		PiecesByPart:           map[string][]models.Piece{},
		SourceLayers:           map[string]models.SourceLayer{},
		OutputLayers:           map[string]models.OutputLayer{},
		PlayedPartIDs:          map[string]bool{},
		DefaultDisplayDuration: s.cfg.Playout.DefaultDisplayDuration,
	}

	if err := s.db.DB.Where("segment_id = ?", segment.ID).Order("rank asc").Find(&args.Parts).Error; err != nil {
		return nil, err
	}
	partIDs := make([]string, 0, len(args.Parts))
	for _, p := range args.Parts {
		partIDs = append(partIDs, p.ID)
	}

	if len(partIDs) > 0 {
		var pieces []models.Piece
		if err := s.db.DB.Where("part_id IN ?", partIDs).Order("rank asc, id asc").Find(&pieces).Error; err != nil {
			return nil, err
		}
		for _, p := range pieces {
			args.PiecesByPart[p.PartID] = append(args.PiecesByPart[p.PartID], p)
		}
	}

	// The part right after the segment previews on the layer views.
	var following models.Part
	err := s.db.DB.
		Joins("JOIN segments ON segments.id = parts.segment_id").
		Where("parts.rundown_id = ? AND segments.rank > ? AND parts.invalid = ?", segment.RundownID, segment.Rank, false).
		Order("segments.rank asc, parts.rank asc").
		First(&following).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err == nil {
		args.FollowingPart = &following
		if err := s.db.DB.Where("part_id = ?", following.ID).Order("rank asc, id asc").Find(&args.FollowingPieces).Error; err != nil {
			return nil, err
		}
	}

	var sourceLayers []models.SourceLayer
	if err := s.db.DB.Find(&sourceLayers).Error; err != nil {
		return nil, err
	}
	for _, l := range sourceLayers {
		args.SourceLayers[l.ID] = l
	}
	var outputLayers []models.OutputLayer
	if err := s.db.DB.Find(&outputLayers).Error; err != nil {
		return nil, err
	}
	for _, l := range outputLayers {
		args.OutputLayers[l.ID] = l
	}

	var rundown models.Rundown
	err = s.db.DB.First(&rundown, "id = ?", segment.RundownID).Error
	if err == gorm.ErrRecordNotFound {
		return args, nil
	}
	if err != nil {
		return nil, err
	}

	partIDOf := func(instanceID *string) string {
		if instanceID == nil {
			return ""
		}
		var instance models.PartInstance
		if err := s.db.DB.First(&instance, "id = ?", *instanceID).Error; err != nil {
			return ""
		}
		return instance.PartID
	}
	args.CurrentPartID = partIDOf(rundown.CurrentPartInstanceID)
	args.NextPartID = partIDOf(rundown.NextPartInstanceID)

	var played []models.PartInstance
	err = s.db.DB.
		Where("rundown_id = ? AND started_playback IS NOT NULL AND is_reset = ?", rundown.ID, false).
		Find(&played).Error
	if err != nil {
		return nil, err
	}
	for _, pi := range played {
		args.PlayedPartIDs[pi.PartID] = true
	}

	return args, nil
}

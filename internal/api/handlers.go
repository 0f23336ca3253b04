package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
	"github.com/chrisryanouellette/tv-automation-server-core/internal/playout"
)

// playoutError maps the playout action errors onto HTTP statuses.
func playoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, playout.ErrRundownNotFound), errors.Is(err, playout.ErrPartNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, playout.ErrAnotherActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, playout.ErrRundownNotActive), errors.Is(err, playout.ErrNoNextPart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetRundowns lists all rundowns with their playback state.
func (s *Server) GetRundowns(c *gin.Context) {
	var rundowns []models.Rundown
	query := s.db.DB.Order("created_at desc")
	if studio := c.Query("studio"); studio != "" {
		query = query.Where("studio_id = ?", studio)
	}
	if err := query.Find(&rundowns).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rundowns})
}

// GetRundown returns one rundown with its segments and parts.
func (s *Server) GetRundown(c *gin.Context) {
	id := c.Param("id")

	var rundown models.Rundown
	err := s.db.DB.First(&rundown, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "rundown not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var segments []models.Segment
	if err := s.db.DB.Where("rundown_id = ?", id).Order("rank asc").Find(&segments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var parts []models.Part
	if err := s.db.DB.Where("rundown_id = ?", id).Order("rank asc").Find(&parts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	partsBySegment := map[string][]models.Part{}
	for _, p := range parts {
		partsBySegment[p.SegmentID] = append(partsBySegment[p.SegmentID], p)
	}
	type segmentOut struct {
		models.Segment
		Parts []models.Part `json:"parts"`
	}
	outSegments := make([]segmentOut, 0, len(segments))
	for _, seg := range segments {
		outSegments = append(outSegments, segmentOut{Segment: seg, Parts: partsBySegment[seg.ID]})
	}

	c.JSON(http.StatusOK, gin.H{"data": rundown, "segments": outSegments})
}

// ActivateRundown puts a rundown on air. Body: {"rehearsal": bool}.
func (s *Server) ActivateRundown(c *gin.Context) {
	var body struct {
		Rehearsal bool `json:"rehearsal"`
	}
	// An empty body means a real activation.
	_ = c.ShouldBindJSON(&body)

	if err := s.playout.Activate(c.Param("id"), body.Rehearsal); err != nil {
		playoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "activated", "rehearsal": body.Rehearsal})
}

func (s *Server) DeactivateRundown(c *gin.Context) {
	if err := s.playout.Deactivate(c.Param("id")); err != nil {
		playoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func (s *Server) TakeRundown(c *gin.Context) {
	if err := s.playout.Take(c.Param("id")); err != nil {
		playoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "taken"})
}

// SetNextPart arms an arbitrary part as the next one.
// Body: {"part_id": "...", "next_time_offset": 500}.
func (s *Server) SetNextPart(c *gin.Context) {
	var body struct {
		PartID         string `json:"part_id"`
		NextTimeOffset *int64 `json:"next_time_offset"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PartID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "part_id is required"})
		return
	}

	if err := s.playout.SetNext(c.Param("id"), body.PartID, body.NextTimeOffset); err != nil {
		playoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "next set", "part_id": body.PartID})
}

func (s *Server) ActivateHold(c *gin.Context) {
	if err := s.playout.ActivateHold(c.Param("id")); err != nil {
		playoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "hold armed"})
}

func (s *Server) ResetRundown(c *gin.Context) {
	if err := s.playout.Reset(c.Param("id")); err != nil {
		playoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

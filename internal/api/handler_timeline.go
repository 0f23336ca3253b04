package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
)

// GetTimeline returns the full published timeline for a studio, the way a
// hardware gateway fetches it after a stat change.
func (s *Server) GetTimeline(c *gin.Context) {
	studioID := c.Param("id")

	var records []models.TimelineObjRecord
	err := s.db.DB.Where("studio_id = ?", studioID).Order("object_id asc").Find(&records).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": records,
		"meta": gin.H{"studio_id": studioID, "count": len(records)},
	})
}

// GetTimelineStat returns the change fingerprint gateways poll.
func (s *Server) GetTimelineStat(c *gin.Context) {
	studioID := c.Param("id")

	var stat models.TimelineStat
	err := s.db.DB.First(&stat, "studio_id = ?", studioID).Error
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "no timeline published for studio"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stat)
}

// TriggerTimelineUpdate forces a rebuild of the studio's timeline. The call
// blocks until the (possibly shared) build pass finishes.
func (s *Server) TriggerTimelineUpdate(c *gin.Context) {
	studioID := c.Param("id")

	var studio models.Studio
	err := s.db.DB.First(&studio, "id = ?", studioID).Error
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "studio not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := s.updater.UpdateTimeline(studioID, nil); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "studio_id": studioID})
}

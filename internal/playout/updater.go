package playout

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
	"github.com/chrisryanouellette/tv-automation-server-core/internal/timeline"
)

var (
	timelineBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playout_timeline_build_duration_seconds",
			Help:    "Time taken to build and persist one studio timeline",
			Buckets: prometheus.DefBuckets,
		},
	)
	timelineObjectCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playout_timeline_objects",
			Help: "Objects on the last published timeline per studio",
		},
		[]string{"studio"},
	)
	timelineUnresolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playout_timeline_unresolved_total",
			Help: "Objects that failed to resolve, per studio",
		},
		[]string{"studio"},
	)
)

func init() {
	prometheus.MustRegister(timelineBuildDuration, timelineObjectCount, timelineUnresolved)
}

type updateCall struct {
	done chan struct{}
	err  error
}

// Updater rebuilds and publishes studio timelines. Concurrent requests for
// the same studio collapse into one pass; callers that arrive while a pass
// is running wait for it and share its error.
type Updater struct {
	db    *gorm.DB
	clock Clock

	mu       sync.Mutex
	inflight map[string]*updateCall

	// buildFn is swapped out in tests to observe pass counts.
	buildFn func(data *RundownInstancesData, baseline []timeline.Object) []timeline.Object
}

func NewUpdater(db *gorm.DB, clock Clock) *Updater {
	return &Updater{
		db:       db,
		clock:    clock,
		inflight: map[string]*updateCall{},
		buildFn:  BuildTimelineObjs,
	}
}

// UpdateTimeline rebuilds the studio's timeline. forceNowTime, when set,
// freezes every pending "now" to that exact ms instead of the wall clock
// (used on auto-next so content starts exactly at the planned boundary).
func (u *Updater) UpdateTimeline(studioID string, forceNowTime *int64) error {
	u.mu.Lock()
	if call, ok := u.inflight[studioID]; ok {
		u.mu.Unlock()
		<-call.done
		return call.err
	}
	call := &updateCall{done: make(chan struct{})}
	u.inflight[studioID] = call
	u.mu.Unlock()

	call.err = u.updateTimeline(studioID, forceNowTime)

	u.mu.Lock()
	delete(u.inflight, studioID)
	u.mu.Unlock()
	close(call.done)
	return call.err
}

func (u *Updater) updateTimeline(studioID string, forceNowTime *int64) error {
	started := time.Now()
	defer func() {
		timelineBuildDuration.Observe(time.Since(started).Seconds())
	}()

	var studio models.Studio
	if err := u.db.First(&studio, "id = ?", studioID).Error; err != nil {
		return fmt.Errorf("finding studio %q: %w", studioID, err)
	}

	var objs []timeline.Object

	var active models.Rundown
	err := u.db.Where("studio_id = ? AND active = ?", studioID, true).First(&active).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		// No show on air, the studio rests on its baseline.
		objs = GetBaselineObjects(studioID)
	case err != nil:
		return fmt.Errorf("finding active rundown for studio %q: %w", studioID, err)
	default:
		data, err := FetchRundownInstancesData(u.db, active)
		if err != nil {
			return err
		}
		objs = u.buildFn(data, GetBaselineObjects(studioID))
		objs = append(objs, GetLookaheadObjects(data)...)
	}

	objs = flattenObjects(objs, "")
	for i := range objs {
		objs[i].StudioID = studioID
	}

	if forceNowTime != nil {
		setNowToTime(objs, *forceNowTime)
	}

	now := nowMs(u.clock)
	if err := u.preserveFrozenStarts(studioID, objs, now); err != nil {
		return err
	}

	resolved := timeline.Resolve(objs, timeline.Options{BaseTime: now})

	unresolvedCount := 0
	for _, r := range resolved {
		if !r.Resolved {
			unresolvedCount++
		}
	}
	if unresolvedCount > 0 {
		log.Printf("⚠️ Studio %q timeline has %d unresolved objects out of %d", studioID, unresolvedCount, len(objs))
		timelineUnresolved.WithLabelValues(studioID).Add(float64(unresolvedCount))
	}
	if len(resolved) != len(objs) {
		log.Printf("⚠️ Studio %q resolved %d objects, expected %d", studioID, len(resolved), len(objs))
	}

	if err := u.persist(studioID, objs, resolved, now); err != nil {
		return err
	}

	timelineObjectCount.WithLabelValues(studioID).Set(float64(len(objs)))
	log.Printf("📡 Studio %q timeline published: %d objects in %s", studioID, len(objs), time.Since(started).Round(time.Millisecond))
	return nil
}

// flattenObjects hoists nested children into the flat list, stamping their
// group membership.
func flattenObjects(objs []timeline.Object, inGroup string) []timeline.Object {
	var out []timeline.Object
	for _, o := range objs {
		if inGroup != "" && o.InGroup == "" {
			o.InGroup = inGroup
		}
		children := o.Children
		o.Children = nil
		out = append(out, o)
		if len(children) > 0 {
			out = append(out, flattenObjects(children, o.ID)...)
		}
	}
	return out
}

// setNowToTime rewrites every pending "now" start to a concrete instant.
func setNowToTime(objs []timeline.Object, at int64) {
	for i := range objs {
		if objs[i].Enable.Start.Kind == timeline.InstantNow {
			objs[i].Enable.Start = timeline.Absolute(at)
			objs[i].Enable.SetFromNow = true
		}
	}
}

// preserveFrozenStarts keeps the start an object was frozen to on an
// earlier pass: an object that went on air at t must not drift to a new
// "now" on every rebuild. Objects still carrying "now" after this are
// frozen to the current pass's time.
func (u *Updater) preserveFrozenStarts(studioID string, objs []timeline.Object, now int64) error {
	var prev []models.TimelineObjRecord
	if err := u.db.Where("studio_id = ? AND set_from_now = ?", studioID, true).Find(&prev).Error; err != nil {
		return fmt.Errorf("loading frozen starts for studio %q: %w", studioID, err)
	}
	frozen := make(map[string]string, len(prev))
	for _, r := range prev {
		frozen[r.ObjectID] = r.EnableStart
	}

	for i := range objs {
		o := &objs[i]
		if o.Enable.Start.Kind != timeline.InstantNow {
			continue
		}
		if raw, ok := frozen[o.ID]; ok {
			if ins, err := timeline.ParseInstant(raw); err == nil && ins.Kind == timeline.InstantAbsolute {
				o.Enable.Start = ins
				o.Enable.SetFromNow = true
				continue
			}
		}
		o.Enable.Start = timeline.Absolute(now)
		o.Enable.SetFromNow = true
	}
	return nil
}

// persist replaces the studio's published timeline and updates its change
// fingerprint in one transaction.
func (u *Updater) persist(studioID string, objs []timeline.Object, resolved map[string]timeline.ResolvedInstant, now int64) error {
	records := make([]models.TimelineObjRecord, 0, len(objs))
	for _, o := range objs {
		r := resolved[o.ID]
		content := ""
		if o.Content != nil {
			raw, err := json.Marshal(o.Content)
			if err != nil {
				return fmt.Errorf("encoding content of object %q: %w", o.ID, err)
			}
			content = string(raw)
		}
		rec := models.TimelineObjRecord{
			ID:             studioID + "_" + o.ID,
			StudioID:       studioID,
			RundownID:      o.RundownID,
			ObjectID:       o.ID,
			ObjectType:     string(o.ObjectType),
			EnableStart:    o.Enable.Start.String(),
			EnableEnd:      o.Enable.End.String(),
			EnableDuration: o.Enable.Duration.String(),
			EnableWhile:    o.Enable.While.String(),
			SetFromNow:     o.Enable.SetFromNow,
			Layer:          o.Layer,
			InGroup:        o.InGroup,
			IsGroup:        o.IsGroup,
			Priority:       o.Priority,
			Classes:        strings.Join(o.Classes, ","),
			HoldMode:       string(o.HoldMode),
			Content:        content,
			ResolvedStart:  r.Start,
			ResolvedEnd:    r.End,
			Resolved:       r.Resolved,
		}
		records = append(records, rec)
	}

	stat := models.TimelineStat{
		StudioID: studioID,
		ObjCount: len(objs),
		ObjHash:  hashTimeline(objs),
		Modified: now,
	}

	return u.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("studio_id = ?", studioID).Delete(&models.TimelineObjRecord{}).Error; err != nil {
			return err
		}
		if len(records) > 0 {
			if err := tx.Create(&records).Error; err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "studio_id"}},
			UpdateAll: true,
		}).Create(&stat).Error
	})
}

// hashTimeline fingerprints the timeline independent of build order.
func hashTimeline(objs []timeline.Object) string {
	sorted := make([]timeline.Object, len(objs))
	copy(sorted, objs)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].ID < sorted[b].ID })

	h := sha256.New()
	for _, o := range sorted {
		entry := struct {
			ID       string `json:"id"`
			Start    string `json:"start"`
			End      string `json:"end"`
			Duration string `json:"duration"`
			While    string `json:"while"`
			Layer    string `json:"layer"`
			InGroup  string `json:"inGroup"`
			Priority int    `json:"priority"`
		}{
			ID:       o.ID,
			Start:    o.Enable.Start.String(),
			End:      o.Enable.End.String(),
			Duration: o.Enable.Duration.String(),
			While:    o.Enable.While.String(),
			Layer:    o.Layer,
			InGroup:  o.InGroup,
			Priority: o.Priority,
		}
		raw, _ := json.Marshal(entry)
		h.Write(raw)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

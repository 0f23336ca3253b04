package playout

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
)

var (
	ErrRundownNotFound  = errors.New("rundown not found")
	ErrRundownNotActive = errors.New("rundown is not active")
	ErrAnotherActive    = errors.New("another rundown is already active in this studio")
	ErrNoNextPart       = errors.New("no next part set")
	ErrPartNotFound     = errors.New("part not found")
)

// Playout executes the operator-facing actions (activate, take, set-next,
// reset) and triggers the timeline rebuild each one implies.
type Playout struct {
	db      *gorm.DB
	clock   Clock
	updater *Updater
}

func NewPlayout(db *gorm.DB, clock Clock, updater *Updater) *Playout {
	return &Playout{db: db, clock: clock, updater: updater}
}

func (p *Playout) loadRundown(rundownID string) (*models.Rundown, error) {
	var rundown models.Rundown
	err := p.db.First(&rundown, "id = ?", rundownID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("%w: %q", ErrRundownNotFound, rundownID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading rundown %q: %w", rundownID, err)
	}
	return &rundown, nil
}

// Activate puts a rundown on air. Only one rundown may be active per studio
// at a time; rehearsal mode runs the full machinery without counting as a
// real broadcast.
func (p *Playout) Activate(rundownID string, rehearsal bool) error {
	rundown, err := p.loadRundown(rundownID)
	if err != nil {
		return err
	}

	var conflicting int64
	err = p.db.Model(&models.Rundown{}).
		Where("studio_id = ? AND active = ? AND id <> ?", rundown.StudioID, true, rundown.ID).
		Count(&conflicting).Error
	if err != nil {
		return fmt.Errorf("checking for active rundowns in studio %q: %w", rundown.StudioID, err)
	}
	if conflicting > 0 {
		return fmt.Errorf("%w (studio %q)", ErrAnotherActive, rundown.StudioID)
	}

	wasActive := rundown.Active
	rundown.Active = true
	rundown.Rehearsal = rehearsal
	if err := p.db.Save(rundown).Error; err != nil {
		return fmt.Errorf("activating rundown %q: %w", rundownID, err)
	}

	if !wasActive && rundown.NextPartInstanceID == nil {
		first, err := firstValidPart(p.db, rundown.ID)
		if err != nil {
			return err
		}
		if first != nil {
			if err := SetNextPart(p.db, p.clock, rundown, first, false, nil); err != nil {
				return err
			}
		}
	}

	log.Printf("🚀 Rundown %q activated (rehearsal=%v)", rundownID, rehearsal)
	return p.updater.UpdateTimeline(rundown.StudioID, nil)
}

// Deactivate takes a rundown off air and clears its playback position. The
// part instances stay for the post-show record.
func (p *Playout) Deactivate(rundownID string) error {
	rundown, err := p.loadRundown(rundownID)
	if err != nil {
		return err
	}

	now := nowMs(p.clock)
	if rundown.CurrentPartInstanceID != nil {
		var current models.PartInstance
		if err := p.db.First(&current, "id = ?", *rundown.CurrentPartInstanceID).Error; err == nil {
			if err := onPartInstanceStoppedPlaying(p.db, &current, now); err != nil {
				return err
			}
		}
	}

	rundown.Active = false
	rundown.Rehearsal = false
	rundown.HoldState = models.HoldStateNone
	rundown.PreviousPartInstanceID = nil
	rundown.CurrentPartInstanceID = nil
	rundown.NextPartInstanceID = nil
	rundown.NextPartManual = false
	rundown.NextTimeOffset = nil
	if err := p.db.Save(rundown).Error; err != nil {
		return fmt.Errorf("deactivating rundown %q: %w", rundownID, err)
	}

	log.Printf("🛑 Rundown %q deactivated", rundownID)
	return p.updater.UpdateTimeline(rundown.StudioID, nil)
}

// Take puts the next part on air: current becomes previous, next becomes
// current and is stamped with its start time, and the part after it is
// armed as the new next.
func (p *Playout) Take(rundownID string) error {
	return p.take(rundownID, nil)
}

// AutoNextTriggered is the take fired by the playout clock when an
// auto-next part reaches its planned boundary. The boundary time is forced
// as "now" so content starts exactly on the planned frame, regardless of
// how late the trigger fired.
func (p *Playout) AutoNextTriggered(rundownID string, at int64) error {
	return p.take(rundownID, &at)
}

func (p *Playout) take(rundownID string, forceNowTime *int64) error {
	rundown, err := p.loadRundown(rundownID)
	if err != nil {
		return err
	}
	if !rundown.Active {
		return fmt.Errorf("%w: %q", ErrRundownNotActive, rundownID)
	}
	if rundown.NextPartInstanceID == nil {
		return fmt.Errorf("%w (rundown %q)", ErrNoNextPart, rundownID)
	}

	data, err := FetchRundownInstancesData(p.db, *rundown)
	if err != nil {
		return err
	}

	now := nowMs(p.clock)
	takeTime := now
	if forceNowTime != nil {
		takeTime = *forceNowTime
	}

	// The outgoing previous is done for good; stamp its final duration.
	if data.Previous != nil {
		if err := onPartInstanceStoppedPlaying(p.db, &data.Previous.Part, takeTime); err != nil {
			return err
		}
	}

	taken := data.Next.Part
	if taken.StartedPlayback == nil {
		taken.StartedPlayback = &takeTime
		err := p.db.Model(&models.PartInstance{}).
			Where("id = ?", taken.ID).
			Updates(map[string]interface{}{"started_playback": takeTime, "take_out": nil}).Error
		if err != nil {
			return fmt.Errorf("stamping playback start of %q: %w", taken.ID, err)
		}
	}

	if err := stampInfiniteStarts(p.db, data.Next, takeTime); err != nil {
		return err
	}

	rundown.PreviousPartInstanceID = rundown.CurrentPartInstanceID
	rundown.CurrentPartInstanceID = rundown.NextPartInstanceID
	rundown.NextPartInstanceID = nil
	if rundown.StartedPlayback == nil {
		rundown.StartedPlayback = &takeTime
	}
	switch rundown.HoldState {
	case models.HoldStatePending:
		rundown.HoldState = models.HoldStateActive
	case models.HoldStateActive:
		rundown.HoldState = models.HoldStateComplete
	case models.HoldStateComplete:
		rundown.HoldState = models.HoldStateNone
	}
	if err := p.db.Save(rundown).Error; err != nil {
		return fmt.Errorf("saving rundown %q after take: %w", rundownID, err)
	}

	var takenPart models.Part
	if err := p.db.First(&takenPart, "id = ?", taken.PartID).Error; err != nil {
		return fmt.Errorf("loading part %q of taken instance: %w", taken.PartID, err)
	}
	following, err := partAfter(p.db, rundown.ID, &takenPart)
	if err != nil {
		return err
	}
	if err := SetNextPart(p.db, p.clock, rundown, following, false, nil); err != nil {
		return err
	}

	log.Printf("▶️ Take in rundown %q: %q on air at %d", rundownID, taken.Title, takeTime)
	return p.updater.UpdateTimeline(rundown.StudioID, forceNowTime)
}

// stampInfiniteStarts marks playback start on original infinite pieces the
// moment their part is taken, so continuations in later parts have an
// anchor even before playback feedback arrives. Pieces are walked in
// playback order and the stamp carries their resolved in-part offset.
func stampInfiniteStarts(db *gorm.DB, taken *PartInstanceData, at int64) error {
	for _, r := range OrderedPieceInstances(taken.Pieces) {
		pi := r.Instance
		if pi.InfiniteMode == models.LifespanNormal || pi.InfiniteID != pi.PieceID {
			continue
		}
		if pi.StartedPlayback != nil {
			continue
		}
		start := at
		if r.Resolved {
			start = at + r.Start
		}
		err := db.Model(&models.PieceInstance{}).
			Where("id = ?", pi.ID).
			Update("started_playback", start).Error
		if err != nil {
			return fmt.Errorf("stamping infinite start of piece instance %q: %w", pi.ID, err)
		}
	}
	return nil
}

// SetNext points a rundown's next at an arbitrary part.
func (p *Playout) SetNext(rundownID, partID string, nextTimeOffset *int64) error {
	rundown, err := p.loadRundown(rundownID)
	if err != nil {
		return err
	}
	if !rundown.Active {
		return fmt.Errorf("%w: %q", ErrRundownNotActive, rundownID)
	}

	var part models.Part
	err = p.db.First(&part, "id = ?", partID).Error
	if err == gorm.ErrRecordNotFound {
		return fmt.Errorf("%w: %q", ErrPartNotFound, partID)
	}
	if err != nil {
		return fmt.Errorf("loading part %q: %w", partID, err)
	}

	if err := SetNextPart(p.db, p.clock, rundown, &part, true, nextTimeOffset); err != nil {
		return err
	}
	return p.updater.UpdateTimeline(rundown.StudioID, nil)
}

// Reset discards a rundown's playback state, rearming it from the top.
func (p *Playout) Reset(rundownID string) error {
	rundown, err := p.loadRundown(rundownID)
	if err != nil {
		return err
	}
	if err := ResetRundown(p.db, p.clock, rundown); err != nil {
		return err
	}
	log.Printf("🔄 Rundown %q reset", rundownID)
	return p.updater.UpdateTimeline(rundown.StudioID, nil)
}

// ActivateHold arms the two-step hold: the next take freezes into the hold,
// the one after completes it.
func (p *Playout) ActivateHold(rundownID string) error {
	rundown, err := p.loadRundown(rundownID)
	if err != nil {
		return err
	}
	if !rundown.Active {
		return fmt.Errorf("%w: %q", ErrRundownNotActive, rundownID)
	}
	if rundown.CurrentPartInstanceID == nil || rundown.NextPartInstanceID == nil {
		return fmt.Errorf("hold needs both a current and a next part (rundown %q)", rundownID)
	}
	if rundown.HoldState != models.HoldStateNone {
		return fmt.Errorf("rundown %q already has a hold in state %d", rundownID, rundown.HoldState)
	}

	rundown.HoldState = models.HoldStatePending
	if err := p.db.Save(rundown).Error; err != nil {
		return fmt.Errorf("arming hold on rundown %q: %w", rundownID, err)
	}
	return p.updater.UpdateTimeline(rundown.StudioID, nil)
}

// Package workflow sequences the multi-service steps behind each
// training session: content upload, range instantiation, and the
// compensating teardown when a later step fails.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rangeburo/orchestrator/internal/peers"
	"github.com/rangeburo/orchestrator/internal/registry"
)

// Description is a resolved training description: what content to
// upload and what range topology to provision. Template lookup happens
// before the engine is invoked.
type Description struct {
	Trainer      string
	ContentRef   string
	TopologyRef  string
	Progression  string
	TraineeCount int
}

// Engine executes the ordered steps of the create and end workflows
// for one session at a time per id. It holds no lock across peer
// calls; only the per-session record is held briefly to apply state
// transitions.
type Engine struct {
	registry *registry.Registry
	content  peers.ContentClient
	ranges   peers.RangeClient
	lmsURL   string
	logger   *logrus.Logger
}

// NewEngine wires the workflow engine. lmsURL is the learning-platform
// address included in session notifications.
func NewEngine(reg *registry.Registry, content peers.ContentClient, ranges peers.RangeClient, lmsURL string, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		registry: reg,
		content:  content,
		ranges:   ranges,
		lmsURL:   lmsURL,
		logger:   logger,
	}
}

// CreateTraining validates the description, allocates a session, and
// runs the success path: content upload, then range instantiation.
// Content is uploaded first because range setup may reference it. If
// instantiation fails, the uploaded content is removed (best effort)
// before the session is marked failed. The session record is returned
// even on failure so callers can inspect it.
func (e *Engine) CreateTraining(ctx context.Context, desc Description) (*registry.Session, error) {
	if err := validate(desc); err != nil {
		return nil, err
	}

	id, err := e.registry.Insert(&registry.Session{
		Trainer:      desc.Trainer,
		State:        registry.StateCreating,
		ContentRef:   desc.ContentRef,
		TopologyRef:  desc.TopologyRef,
		Progression:  desc.Progression,
		TraineeCount: desc.TraineeCount,
	})
	if err != nil {
		return nil, err
	}
	log := e.logger.WithField("session_id", id)
	log.Info("session allocated, starting creation workflow")

	activityIDs, err := e.content.ConvertAndUpload(ctx, desc.ContentRef, id)
	if err != nil {
		// Nothing external was created, no compensation needed.
		log.WithError(err).Error("content upload failed")
		sess := e.fail(id, err, "")
		return sess, err
	}
	e.mustUpdate(id, func(s *registry.Session) error {
		s.ActivityIDs = activityIDs
		s.State = registry.StateContentReady
		return nil
	})

	rangeID, endpoints, err := e.ranges.CreateRange(ctx, desc.TopologyRef, id, desc.Progression)
	if err != nil {
		log.WithError(err).Error("range instantiation failed, removing uploaded content")
		cleanup := ""
		if rerr := e.content.Remove(ctx, id, activityIDs); rerr != nil {
			// Best effort: record but never mask the original error.
			log.WithError(rerr).Warn("content removal during compensation failed")
			cleanup = rerr.Error()
		} else {
			e.mustUpdate(id, func(s *registry.Session) error {
				s.ActivityIDs = nil
				return nil
			})
		}
		sess := e.fail(id, err, cleanup)
		return sess, err
	}

	e.mustUpdate(id, func(s *registry.Session) error {
		s.RangeID = rangeID
		s.Endpoints = &registry.Endpoints{
			LearningPlatformURL:  e.lmsURL,
			RangeAccessEndpoints: endpoints,
		}
		s.State = registry.StateRangeReady
		return nil
	})
	sess := e.mustUpdate(id, func(s *registry.Session) error {
		s.State = registry.StateActive
		return nil
	})
	log.WithField("range_id", rangeID).Info("session active")
	return sess, nil
}

// EndTraining tears down a session: range destruction and content
// removal are attempted independently, so one failure does not leave
// the other resource orphaned. A session that failed mid-teardown can
// be resubmitted; already-released resources are not released twice.
func (e *Engine) EndTraining(ctx context.Context, id int) (*registry.Session, error) {
	if _, ok := e.registry.Get(id); !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	claimed, err := e.registry.Update(id, func(s *registry.Session) error {
		switch s.State {
		case registry.StateActive:
		case registry.StateFailed:
			if s.RangeID == "" && len(s.ActivityIDs) == 0 {
				return fmt.Errorf("%w: session %d failed with no resources to release", ErrConflict, id)
			}
		case registry.StateEnded:
			return fmt.Errorf("%w: session %d already ended", ErrConflict, id)
		default:
			// A workflow step is still in flight; retry once it settles.
			return fmt.Errorf("%w: session %d is %s", ErrConflict, id, s.State)
		}
		s.State = registry.StateEnding
		return nil
	})
	if err != nil {
		return nil, err
	}
	log := e.logger.WithField("session_id", id)
	log.Info("ending session")

	var stepErrs []error

	if claimed.RangeID != "" {
		if err := e.ranges.DestroyRange(ctx, claimed.RangeID); err != nil {
			log.WithError(err).Error("range destruction failed")
			stepErrs = append(stepErrs, fmt.Errorf("%s: %w", peers.ActionDestroyRange, err))
		} else {
			e.mustUpdate(id, func(s *registry.Session) error {
				s.RangeID = ""
				return nil
			})
		}
	}

	if len(claimed.ActivityIDs) > 0 {
		if err := e.content.Remove(ctx, id, claimed.ActivityIDs); err != nil {
			log.WithError(err).Error("content removal failed")
			stepErrs = append(stepErrs, fmt.Errorf("%s: %w", peers.ActionRemoveContent, err))
		} else {
			e.mustUpdate(id, func(s *registry.Session) error {
				s.ActivityIDs = nil
				return nil
			})
		}
	}

	if len(stepErrs) > 0 {
		cause := errors.Join(stepErrs...)
		sess := e.mustUpdate(id, func(s *registry.Session) error {
			s.State = registry.StateFailed
			s.Error = cause.Error()
			return nil
		})
		return sess, fmt.Errorf("teardown incomplete: %w", cause)
	}

	sess := e.mustUpdate(id, func(s *registry.Session) error {
		now := time.Now().UTC()
		s.State = registry.StateEnded
		s.EndedAt = &now
		return nil
	})
	log.Info("session ended")
	return sess, nil
}

// Sessions returns a snapshot of session summaries, optionally
// filtered by state. Concurrent mutations after the call do not affect
// the returned slice.
func (e *Engine) Sessions(filter registry.State) ([]registry.Summary, error) {
	if filter != "" && !filter.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown state %q", filter)}
	}
	var pred func(*registry.Session) bool
	if filter != "" {
		pred = func(s *registry.Session) bool { return s.State == filter }
	}
	sessions := e.registry.Scan(pred)
	summaries := make([]registry.Summary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, s.Summary())
	}
	return summaries, nil
}

// Session returns a summary of a single session.
func (e *Engine) Session(id int) (registry.Summary, error) {
	sess, ok := e.registry.Get(id)
	if !ok {
		return registry.Summary{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return sess.Summary(), nil
}

// Notification returns the endpoints recorded when the session became
// active. Peer services are not re-queried.
func (e *Engine) Notification(id int) (*registry.Endpoints, error) {
	sess, ok := e.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if sess.State != registry.StateActive {
		return nil, fmt.Errorf("%w: session %d is %s", ErrInvalidState, id, sess.State)
	}
	return sess.Endpoints, nil
}

func validate(desc Description) error {
	if strings.TrimSpace(desc.ContentRef) == "" {
		return &ValidationError{Reason: "content reference is empty"}
	}
	if strings.TrimSpace(desc.TopologyRef) == "" {
		return &ValidationError{Reason: "range topology reference is empty"}
	}
	if desc.TraineeCount < 1 {
		return &ValidationError{Reason: "trainee count must be at least 1"}
	}
	return nil
}

// fail moves the session to the failed state, recording the original
// error and any compensation failure alongside it.
func (e *Engine) fail(id int, cause error, cleanup string) *registry.Session {
	return e.mustUpdate(id, func(s *registry.Session) error {
		s.State = registry.StateFailed
		s.Error = cause.Error()
		s.CleanupError = cleanup
		return nil
	})
}

// mustUpdate applies an unconditional state transition. The only way
// it can fail is the id missing from the registry, which would mean a
// record vanished mid-workflow; that is a programming error.
func (e *Engine) mustUpdate(id int, fn func(*registry.Session) error) *registry.Session {
	sess, err := e.registry.Update(id, fn)
	if err != nil {
		panic(fmt.Sprintf("workflow: update session %d: %v", id, err))
	}
	return sess
}

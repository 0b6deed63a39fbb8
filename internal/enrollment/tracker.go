// Package enrollment tracks the courses the current identity is enrolled in.
package enrollment

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/internal/session"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
)

// ErrDuplicate is returned by a Repository when the (user, course) pair already exists.
var ErrDuplicate = errors.New("enrollment already exists")

// Repository persists enrollment records.
type Repository interface {
	ListCourseIDsByUser(ctx context.Context, userID string) ([]string, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
}

// IdentitySource exposes the current identity and its change notifications.
type IdentitySource interface {
	Current() *models.Identity
	Subscribe(fn func(session.Snapshot)) func()
}

// Observer receives enrollment telemetry.
type Observer interface {
	IncEnrollment(outcome string)
}

// Tracker holds the enrolled course IDs of the current identity.
type Tracker struct {
	repo     Repository
	identity IdentitySource
	notifier session.Notifier
	logger   *zap.Logger
	observer Observer

	mu          sync.RWMutex
	owner       string
	courses     map[string]struct{}
	unsubscribe func()
}

// Params groups Tracker dependencies. Notifier, Logger and Observer are optional.
type Params struct {
	Repository Repository
	Identity   IdentitySource
	Notifier   session.Notifier
	Logger     *zap.Logger
	Observer   Observer
}

// NewTracker constructs a Tracker and subscribes it to identity changes. Whenever the
// identity changes the set is cleared and must be refreshed.
func NewTracker(p Params) *Tracker {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	t := &Tracker{
		repo:     p.Repository,
		identity: p.Identity,
		notifier: p.Notifier,
		logger:   p.Logger,
		observer: p.Observer,
		courses:  make(map[string]struct{}),
	}
	if current := p.Identity.Current(); current != nil {
		t.owner = current.ID
	}
	t.unsubscribe = p.Identity.Subscribe(t.onIdentityChange)
	return t
}

// Close detaches the tracker from the identity source.
func (t *Tracker) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
}

// Refresh replaces the set with the records stored for the current identity.
// Without an identity the set is emptied.
func (t *Tracker) Refresh(ctx context.Context) error {
	current := t.identity.Current()
	if current == nil {
		t.replace("", nil)
		return nil
	}

	ids, err := t.repo.ListCourseIDsByUser(ctx, current.ID)
	if err != nil {
		t.logger.Error("failed to load enrollments", zap.String("user_id", current.ID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	t.replace(current.ID, ids)
	return nil
}

// IsEnrolled reports whether courseID is in the set.
func (t *Tracker) IsEnrolled(courseID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.courses[courseID]
	return ok
}

// CourseIDs returns a copy of the set.
func (t *Tracker) CourseIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.courses))
	for id := range t.courses {
		out = append(out, id)
	}
	return out
}

// Len returns the number of enrolled courses.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.courses)
}

// Enroll enrolls the current identity in a free course. The set is only updated
// after the record has been stored.
func (t *Tracker) Enroll(ctx context.Context, course models.Course) (*models.Enrollment, error) {
	current := t.identity.Current()
	if current == nil {
		return nil, t.fail("unauthenticated", appErrors.Clone(appErrors.ErrUnauthenticated, "please sign in to enroll"))
	}
	if t.IsEnrolled(course.ID) {
		return nil, t.inform("already_enrolled", appErrors.Clone(appErrors.ErrAlreadyEnrolled, ""))
	}
	if !course.IsFree {
		return nil, t.inform("payment_required", appErrors.Clone(appErrors.ErrPaymentRequired, ""))
	}

	enrollment := &models.Enrollment{UserID: current.ID, CourseID: course.ID}
	if err := t.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, t.inform("already_enrolled", appErrors.Clone(appErrors.ErrAlreadyEnrolled, ""))
		}
		t.logger.Error("failed to create enrollment",
			zap.String("user_id", current.ID),
			zap.String("course_id", course.ID),
			zap.Error(err),
		)
		return nil, t.fail("error", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll in course"))
	}

	t.mu.Lock()
	if t.owner == current.ID {
		t.courses[course.ID] = struct{}{}
	}
	t.mu.Unlock()

	t.observe("success")
	t.notify(session.KindSuccess, "Successfully enrolled in "+course.Name)
	return enrollment, nil
}

func (t *Tracker) onIdentityChange(snap session.Snapshot) {
	owner := ""
	if snap.Identity != nil {
		owner = snap.Identity.ID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if owner == t.owner {
		return
	}
	t.owner = owner
	t.courses = make(map[string]struct{})
}

func (t *Tracker) replace(owner string, ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	t.mu.Lock()
	t.owner = owner
	t.courses = next
	t.mu.Unlock()
}

func (t *Tracker) inform(outcome string, err *appErrors.Error) error {
	t.observe(outcome)
	t.notify(session.KindInfo, err.Message)
	return err
}

func (t *Tracker) fail(outcome string, err *appErrors.Error) error {
	t.observe(outcome)
	t.notify(session.KindError, err.Message)
	return err
}

func (t *Tracker) observe(outcome string) {
	if t.observer != nil {
		t.observer.IncEnrollment(outcome)
	}
}

func (t *Tracker) notify(kind session.Kind, message string) {
	if t.notifier != nil {
		t.notifier.Notify(session.Notification{Kind: kind, Message: message})
	}
}

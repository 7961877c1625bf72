package library

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// ActivityLog is the append-only audit sink. Every mutation and every
// authentication outcome is recorded through it.
type ActivityLog interface {
	UserAction(userID int64, action, description string)
	SystemAction(action, description string)
}

// Options carries the collaborators shared by the services.
type Options struct {
	Logger logrus.FieldLogger
	Audit  ActivityLog
	Clock  Clock
	Hasher Hasher
}

type noAudit struct{}

func (noAudit) UserAction(int64, string, string) {}
func (noAudit) SystemAction(string, string)      {}

// service holds what Catalog, Directory and Ledger have in common.
type service struct {
	store  Store
	log    logrus.FieldLogger
	audit  ActivityLog
	clock  Clock
	hasher Hasher
}

func newService(store Store, component string, opts Options) service {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	audit := opts.Audit
	if audit == nil {
		audit = noAudit{}
	}
	hasher := opts.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return service{
		store:  store,
		log:    logger.WithField("component", component),
		audit:  audit,
		clock:  opts.Clock,
		hasher: hasher,
	}
}

// record writes an audit line attributed to the session in ctx, or to the system.
func (s service) record(ctx context.Context, action, description string) {
	if sess, ok := SessionFrom(ctx); ok {
		s.audit.UserAction(sess.User.ID, action, description)
		return
	}
	s.audit.SystemAction(action, description)
}

// check passes domain errors through and converts anything else into
// ErrOperationFailed after logging it in full.
func (s service) check(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	s.log.WithError(err).WithField("op", op).Error("store operation failed")
	return ErrOperationFailed
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrNotFound, ErrConflict,
		ErrInvalidCredentials, ErrForbidden, ErrOperationFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

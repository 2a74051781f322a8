// Package engine implements the review operations behind the HTTP surface:
// artifact visibility, submission downloads, the review-application state
// machine, and workflow-run access. Handlers translate its typed errors into
// the API envelope.
package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"reviewapi/internal/artifacts"
	"reviewapi/internal/authz"
	"reviewapi/internal/clients"
	"reviewapi/internal/config"
	"reviewapi/internal/domain"
	"reviewapi/internal/events"
	"reviewapi/internal/notify"
	"reviewapi/internal/repo"
)

// ChallengeLookup resolves challenge state from the challenge service.
type ChallengeLookup interface {
	Get(ctx context.Context, challengeID string) (domain.Challenge, error)
}

// BadRequestError rejects malformed or mismatched input.
type BadRequestError struct {
	Msg string
}

func (e BadRequestError) Error() string { return e.Msg }

// ConflictError rejects a state transition out of a terminal status.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }

// RoleLookup resolves a member's challenge-scoped roles. Results are never
// cached: each decision re-resolves.
type RoleLookup interface {
	Roles(ctx context.Context, challengeID, memberID string) ([]string, error)
}

// EmailLookup resolves member email addresses.
type EmailLookup interface {
	Emails(ctx context.Context, userIDs []string) ([]clients.UserEmail, error)
}

// Mailer delivers templated emails. Failures are logged, never propagated
// into a committed transition.
type Mailer interface {
	Send(ctx context.Context, email notify.Email) error
}

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Events     events.Writer
	Config     *config.Config
	Challenges ChallengeLookup
	Roles      RoleLookup
	Members    EmailLookup
	Mailer     Mailer
	Store      *artifacts.Store
	Logger     *zap.Logger
	Now        func() time.Time
}

func New(db *sql.DB, cfg *config.Config, logger *zap.Logger) Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Logger: logger,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func elevated(ident authz.Identity) bool {
	return ident.IsMachine || ident.IsAdmin()
}

// roleSet resolves the caller's roles on a challenge through the resource
// service. Callers skip this entirely for elevated identities.
func (e Engine) roleSet(ctx context.Context, ident authz.Identity, challengeID string) (authz.RoleSet, error) {
	if e.Roles == nil {
		return authz.RoleSet{}, nil
	}
	names, err := e.Roles.Roles(ctx, challengeID, ident.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve challenge roles")
	}
	return authz.NewRoleSet(names...), nil
}

func (e Engine) challengeStatus(ctx context.Context, challengeID string) (string, error) {
	if e.Challenges == nil {
		return "", errors.New("challenge lookup not configured")
	}
	ch, err := e.Challenges.Get(ctx, challengeID)
	if err != nil {
		return "", errors.Wrap(err, "resolve challenge")
	}
	return ch.Status, nil
}

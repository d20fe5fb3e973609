package app

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"civicvoice/internal/attachment"
	"civicvoice/internal/auth"
	"civicvoice/internal/authpw"
	"civicvoice/internal/complaint"
	"civicvoice/internal/config"
	"civicvoice/internal/feedback"
	"civicvoice/internal/identity"
	"civicvoice/internal/logging"
	"civicvoice/internal/metrics"
	"civicvoice/internal/rbac"
	"civicvoice/internal/sentiment"
	"civicvoice/internal/store"

	"go.uber.org/zap"
)

type dataStore interface {
	sessionStore
	Ping(ctx context.Context) error
	IsAdministrator(ctx context.Context, principalID string) (bool, error)
	GrantAdministrator(ctx context.Context, principalID, note string) error
	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	InsertComplaint(ctx context.Context, c complaint.Complaint) error
	GetComplaint(ctx context.Context, id string) (complaint.Complaint, error)
	UpdateComplaintStatus(ctx context.Context, id string, status complaint.Status, expectedRevision int64) (complaint.Complaint, bool, error)
	DeleteComplaint(ctx context.Context, id string) (bool, error)
	ListComplaints(ctx context.Context, filter store.ComplaintFilter) ([]complaint.Complaint, error)
	InsertFeedback(ctx context.Context, fb feedback.Feedback) error
	ListFeedback(ctx context.Context, filter store.FeedbackFilter) ([]feedback.Feedback, int, error)
	Summary(ctx context.Context) (store.Summary, error)
}

// sessionStore is implemented by both the Postgres store and session.RedisStore.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, session store.RefreshSession, expiresAt time.Time) error
	ConsumeRefreshSession(ctx context.Context, tokenHash string) (store.RefreshSession, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type attachmentStore interface {
	Put(ctx context.Context, complaintID string, upload attachment.Upload) (string, error)
	URL(ctx context.Context, key string) (*url.URL, error)
	Remove(ctx context.Context, key string) error
}

type resetMailer interface {
	IsConfigured() bool
	SendPasswordResetEmail(to, userName, resetURL string) error
}

// hostedAccounts is the account management side of the Firebase provider.
type hostedAccounts interface {
	RevokeSessions(ctx context.Context, uid string) error
	PasswordResetLink(ctx context.Context, email string) (string, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators built once per process by main. Only Store is
// required; nil optional collaborators disable the features that need them.
type Deps struct {
	Store       dataStore
	Sessions    sessionStore
	Provider    auth.Provider
	Accounts    hostedAccounts
	Passwords   *authpw.Service
	Mailer      resetMailer
	Classifier  sentiment.Classifier
	Attachments attachmentStore
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	// Readiness lists extra collaborators checked by /api/ready, keyed by name.
	Readiness map[string]Pinger
}

type Service struct {
	cfg         config.Config
	store       dataStore
	sessions    sessionStore
	provider    auth.Provider
	resolver    *identity.Resolver
	accounts    hostedAccounts
	passwords   *authpw.Service
	mailer      resetMailer
	classifier  sentiment.Classifier
	modelName   string
	attachments attachmentStore
	metrics     *metrics.Metrics
	logger      *zap.Logger
	readiness   map[string]Pinger
	now         func() time.Time
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = deps.Store
	}
	provider := deps.Provider
	if provider == nil {
		provider = auth.NewNativeProvider(cfg.JWTSecret, deps.Store)
	}
	modelName := ""
	if named, ok := deps.Classifier.(interface{ ModelName() string }); ok {
		modelName = named.ModelName()
	}
	return &Service{
		cfg:         cfg,
		store:       deps.Store,
		sessions:    sessions,
		provider:    provider,
		resolver:    identity.NewResolver(deps.Store, logger),
		accounts:    deps.Accounts,
		passwords:   deps.Passwords,
		mailer:      deps.Mailer,
		classifier:  deps.Classifier,
		modelName:   modelName,
		attachments: deps.Attachments,
		metrics:     deps.Metrics,
		logger:      logger,
		readiness:   deps.Readiness,
		now:         time.Now,
	}
}

// Bootstrap registers the configured administrators. Re-running it is harmless.
func (s *Service) Bootstrap(ctx context.Context) error {
	for _, principalID := range s.cfg.BootstrapAdmins {
		if err := s.store.GrantAdministrator(ctx, principalID, "bootstrap"); err != nil {
			return fmt.Errorf("bootstrap administrator %s: %w", principalID, err)
		}
		s.logger.Info("administrator registered", zap.String("principal_id", principalID))
	}
	return nil
}

// Ping checks the database and returns per-collaborator results for the others.
func (s *Service) Ping(ctx context.Context) (map[string]error, error) {
	if err := s.store.Ping(ctx); err != nil {
		return nil, err
	}
	results := make(map[string]error, len(s.readiness))
	for name, dep := range s.readiness {
		results[name] = dep.Ping(ctx)
	}
	return results, nil
}

// Actor is the principal behind a request together with the role resolved
// for that request. It is never reused across requests.
type Actor struct {
	Principal auth.Principal
	Role      rbac.Role
}

func (a Actor) ID() string {
	return a.Principal.ID
}

func (a Actor) Authenticated() bool {
	return a.Principal.Authenticated()
}

// ActorFor resolves the role of an already verified principal.
func (s *Service) ActorFor(ctx context.Context, principal auth.Principal) Actor {
	if !principal.Authenticated() {
		return Actor{Role: rbac.RoleCitizen}
	}
	return Actor{Principal: principal, Role: s.resolver.Resolve(ctx, principal)}
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return logging.FromContext(ctx, s.logger)
}

// deny records an authorization refusal for audit and returns the error
// surfaced to the caller.
func (s *Service) deny(ctx context.Context, actor Actor, action rbac.Action, complaintID, message string) error {
	s.metrics.IncrementPermissionDenied(string(action))
	s.log(ctx).Warn("permission denied",
		zap.String("principal_id", actor.ID()),
		zap.String("role", string(actor.Role)),
		zap.String("action", string(action)),
		zap.String("complaint_id", complaintID),
	)
	return permissionDenied(message)
}

func requirePrincipal(actor Actor) error {
	if !actor.Authenticated() {
		return authenticationRequired()
	}
	return nil
}

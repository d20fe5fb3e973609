package app

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"civicvoice/internal/attachment"
	"civicvoice/internal/auth"
	"civicvoice/internal/authpw"
	"civicvoice/internal/complaint"
	"civicvoice/internal/config"
	"civicvoice/internal/feedback"
	"civicvoice/internal/metrics"
	"civicvoice/internal/sentiment"
	"civicvoice/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeStore is an in-memory dataStore. The *Fn fields override single
// operations to inject failures.
type fakeStore struct {
	mu sync.Mutex

	complaints map[string]complaint.Complaint
	feedback   []feedback.Feedback
	admins     map[string]bool
	refresh    map[string]store.RefreshSession
	revoked    map[string]bool
	users      map[string]store.User
	resets     map[string]string

	pingFn                  func(context.Context) error
	isAdministratorFn       func(context.Context, string) (bool, error)
	insertComplaintFn       func(context.Context, complaint.Complaint) error
	getComplaintFn          func(context.Context, string) (complaint.Complaint, error)
	updateComplaintStatusFn func(context.Context, string, complaint.Status, int64) (complaint.Complaint, bool, error)
	deleteComplaintFn       func(context.Context, string) (bool, error)
	listComplaintsFn        func(context.Context, store.ComplaintFilter) ([]complaint.Complaint, error)
	insertFeedbackFn        func(context.Context, feedback.Feedback) error

	listFilters []store.ComplaintFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		complaints: make(map[string]complaint.Complaint),
		admins:     make(map[string]bool),
		refresh:    make(map[string]store.RefreshSession),
		revoked:    make(map[string]bool),
		users:      make(map[string]store.User),
		resets:     make(map[string]string),
	}
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) IsAdministrator(ctx context.Context, principalID string) (bool, error) {
	if f.isAdministratorFn != nil {
		return f.isAdministratorFn(ctx, principalID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admins[principalID], nil
}

func (f *fakeStore) GrantAdministrator(_ context.Context, principalID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admins[principalID] = true
	return nil
}

func (f *fakeStore) SaveRefreshSession(_ context.Context, tokenHash string, session store.RefreshSession, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = session
	return nil
}

func (f *fakeStore) ConsumeRefreshSession(_ context.Context, tokenHash string) (store.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.refresh[tokenHash]
	if !ok {
		return store.RefreshSession{}, store.ErrNotFound
	}
	delete(f.refresh, tokenHash)
	return session, nil
}

func (f *fakeStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeStore) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

func (f *fakeStore) InsertComplaint(ctx context.Context, c complaint.Complaint) error {
	if f.insertComplaintFn != nil {
		return f.insertComplaintFn(ctx, c)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complaints[c.ID] = c
	return nil
}

func (f *fakeStore) GetComplaint(ctx context.Context, id string) (complaint.Complaint, error) {
	if f.getComplaintFn != nil {
		return f.getComplaintFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.complaints[id]
	if !ok {
		return complaint.Complaint{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) UpdateComplaintStatus(ctx context.Context, id string, status complaint.Status, expectedRevision int64) (complaint.Complaint, bool, error) {
	if f.updateComplaintStatusFn != nil {
		return f.updateComplaintStatusFn(ctx, id, status, expectedRevision)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.complaints[id]
	if !ok || c.Revision != expectedRevision {
		return complaint.Complaint{}, false, nil
	}
	c.Status = status
	c.Revision++
	f.complaints[id] = c
	return c, true, nil
}

func (f *fakeStore) DeleteComplaint(ctx context.Context, id string) (bool, error) {
	if f.deleteComplaintFn != nil {
		return f.deleteComplaintFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.complaints[id]
	delete(f.complaints, id)
	return ok, nil
}

func (f *fakeStore) ListComplaints(ctx context.Context, filter store.ComplaintFilter) ([]complaint.Complaint, error) {
	f.mu.Lock()
	f.listFilters = append(f.listFilters, filter)
	f.mu.Unlock()
	if f.listComplaintsFn != nil {
		return f.listComplaintsFn(ctx, filter)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]complaint.Complaint, 0, len(f.complaints))
	for _, c := range f.complaints {
		if filter.OwnerID != "" && c.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && string(c.Status) != filter.Status {
			continue
		}
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (f *fakeStore) InsertFeedback(ctx context.Context, fb feedback.Feedback) error {
	if f.insertFeedbackFn != nil {
		return f.insertFeedbackFn(ctx, fb)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, fb)
	return nil
}

func (f *fakeStore) ListFeedback(_ context.Context, filter store.FeedbackFilter) ([]feedback.Feedback, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []feedback.Feedback
	for i := len(f.feedback) - 1; i >= 0; i-- {
		if filter.OwnerID == "" || f.feedback[i].OwnerID == filter.OwnerID {
			matched = append(matched, f.feedback[i])
		}
	}
	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (f *fakeStore) Summary(context.Context) (store.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := store.Summary{ComplaintsByStatus: map[string]int{}, FeedbackBySentiment: map[string]int{}}
	for _, c := range f.complaints {
		summary.ComplaintsByStatus[string(c.Status)]++
	}
	var ratings int
	for _, fb := range f.feedback {
		summary.FeedbackBySentiment[string(fb.Sentiment)]++
		ratings += fb.Rating
	}
	summary.FeedbackTotal = len(f.feedback)
	if summary.FeedbackTotal > 0 {
		summary.AverageRating = float64(ratings) / float64(summary.FeedbackTotal)
	}
	return summary, nil
}

// authpw.UserStore

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, strings.TrimSpace(email)) {
			return user, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return store.ErrDuplicate
		}
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	f.users[userID] = user
	return nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, userID, tokenHash string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[tokenHash] = userID
	return nil
}

func (f *fakeStore) ConsumePasswordReset(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.resets[tokenHash]
	if !ok {
		return "", store.ErrNotFound
	}
	delete(f.resets, tokenHash)
	return userID, nil
}

type fakeClassifier struct {
	calls    int
	classify func(context.Context, string) (sentiment.Result, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (sentiment.Result, error) {
	f.calls++
	if f.classify != nil {
		return f.classify(ctx, text)
	}
	return sentiment.Result{Sentiment: sentiment.Positive, Confidence: 0.9, Reason: "Appreciative tone"}, nil
}

func (f *fakeClassifier) ModelName() string { return "fake-model" }

type fakeAttachments struct {
	objects map[string]string
	putErr  error
	removed []string
}

func newFakeAttachments() *fakeAttachments {
	return &fakeAttachments{objects: make(map[string]string)}
}

func (f *fakeAttachments) Put(_ context.Context, complaintID string, upload attachment.Upload) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	if err := upload.Validate(); err != nil {
		return "", err
	}
	key := attachment.ObjectKey(complaintID, upload.Name, upload.ContentType)
	f.objects[key] = attachment.NormalizeType(upload.ContentType)
	return key, nil
}

func (f *fakeAttachments) URL(_ context.Context, key string) (*url.URL, error) {
	if _, ok := f.objects[key]; !ok {
		return nil, errors.New("no such object")
	}
	return url.Parse("https://objects.example.com/complaint-attachments/" + key + "?X-Amz-Signature=test")
}

func (f *fakeAttachments) Remove(_ context.Context, key string) error {
	f.removed = append(f.removed, key)
	delete(f.objects, key)
	return nil
}

type fakeMailer struct {
	configured bool
	sent       []string
}

func (f *fakeMailer) IsConfigured() bool { return f.configured }

func (f *fakeMailer) SendPasswordResetEmail(to, _, resetURL string) error {
	f.sent = append(f.sent, to+" "+resetURL)
	return nil
}

type fakeAccounts struct {
	revoked []string
	link    string
	linkErr error
}

func (f *fakeAccounts) RevokeSessions(_ context.Context, uid string) error {
	f.revoked = append(f.revoked, uid)
	return nil
}

func (f *fakeAccounts) PasswordResetLink(context.Context, string) (string, error) {
	return f.link, f.linkErr
}

type testEnv struct {
	svc         *Service
	store       *fakeStore
	classifier  *fakeClassifier
	attachments *fakeAttachments
	mailer      *fakeMailer
	metrics     *metrics.Metrics
	logs        *observer.ObservedLogs
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Env = "test"
	cfg.JWTSecret = "test-secret-for-civic-voice"
	cfg.SentimentTimeout = time.Second
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config, *Deps)) *testEnv {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	env := &testEnv{
		store:       newFakeStore(),
		classifier:  &fakeClassifier{},
		attachments: newFakeAttachments(),
		mailer:      &fakeMailer{},
		metrics:     metrics.New(prometheus.NewRegistry()),
		logs:        logs,
	}
	cfg := testConfig()
	deps := Deps{
		Store:       env.store,
		Passwords:   authpw.NewService(env.store),
		Mailer:      env.mailer,
		Classifier:  env.classifier,
		Attachments: env.attachments,
		Metrics:     env.metrics,
		Logger:      zap.New(core),
	}
	for _, fn := range mutate {
		fn(&cfg, &deps)
	}
	env.svc = New(cfg, deps)
	return env
}

func (e *testEnv) citizen(id string) Actor {
	return e.svc.ActorFor(context.Background(), auth.Principal{ID: id, Name: "Citizen " + id})
}

func (e *testEnv) admin(id string) Actor {
	e.store.admins[id] = true
	return e.svc.ActorFor(context.Background(), auth.Principal{ID: id, Name: "Admin " + id})
}

// token issues a real access token for principalID through the session path.
func (e *testEnv) token(t *testing.T, principalID string) string {
	t.Helper()
	session, err := e.svc.issueSession(context.Background(), store.RefreshSession{PrincipalID: principalID, DisplayName: "User " + principalID})
	require.NoError(t, err)
	return session.Token
}

func validInput() complaint.Input {
	return complaint.Input{
		Title:       "Pothole on Main Street",
		Category:    "Roads",
		Description: "A deep pothole near the bus stop is damaging cars.",
		Location:    "Main Street and 3rd Avenue",
		Name:        "Asha Rao",
		Email:       "asha@example.com",
		Phone:       "5551234567",
		Priority:    "High",
	}
}

// seedComplaint stores a complaint directly, bypassing the service.
func (e *testEnv) seedComplaint(id, owner string, status complaint.Status, created time.Time) complaint.Complaint {
	c := complaint.New(id, owner, validInput(), created)
	c.Status = status
	e.store.complaints[id] = c
	return c
}

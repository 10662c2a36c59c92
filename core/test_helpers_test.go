package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	testAPIToken      = "11111111-1111-4111-8111-111111111111"
	testOtherAPIToken = "22222222-2222-4222-8222-222222222222"
	testHandle        = "a01234567"
)

type memoryAPICredentialStore struct {
	mu       sync.Mutex
	records  map[string]APICredential
	getErr   error
	getCalls int
}

func newMemoryAPICredentialStore() *memoryAPICredentialStore {
	return &memoryAPICredentialStore{records: map[string]APICredential{}}
}

func (s *memoryAPICredentialStore) Create(_ context.Context, credential APICredential) (APICredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[credential.Token]; exists {
		return APICredential{}, fmt.Errorf("memory: duplicate api credential %q", credential.Token)
	}
	s.records[credential.Token] = credential
	return credential, nil
}

func (s *memoryAPICredentialStore) Get(_ context.Context, token string) (APICredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return APICredential{}, s.getErr
	}
	credential, ok := s.records[token]
	if !ok {
		return APICredential{}, fmt.Errorf("%w: token %q", ErrAPICredentialNotFound, token)
	}
	return credential, nil
}

func (s *memoryAPICredentialStore) Update(_ context.Context, credential APICredential) (APICredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[credential.Token]; !ok {
		return APICredential{}, fmt.Errorf("%w: token %q", ErrAPICredentialNotFound, credential.Token)
	}
	s.records[credential.Token] = credential
	return credential, nil
}

func (s *memoryAPICredentialStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[token]; !ok {
		return fmt.Errorf("%w: token %q", ErrAPICredentialNotFound, token)
	}
	delete(s.records, token)
	return nil
}

type memoryVerificationStore struct {
	mu        sync.Mutex
	records   map[string]VerificationCredential
	markErr   error
	markCalls int
	getCalls  int
}

func newMemoryVerificationStore() *memoryVerificationStore {
	return &memoryVerificationStore{records: map[string]VerificationCredential{}}
}

func (s *memoryVerificationStore) Create(_ context.Context, verification VerificationCredential) (VerificationCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[verification.Token] = verification
	return verification, nil
}

func (s *memoryVerificationStore) Get(_ context.Context, token string) (VerificationCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	verification, ok := s.records[token]
	if !ok {
		return VerificationCredential{}, fmt.Errorf("%w: token %q", ErrVerificationNotFound, token)
	}
	return verification, nil
}

func (s *memoryVerificationStore) MarkConfirmed(_ context.Context, token string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	if s.markErr != nil {
		return false, s.markErr
	}
	verification, ok := s.records[token]
	if !ok || verification.ConfirmedAt != nil || !at.Before(verification.ExpiresAt) {
		return false, nil
	}
	confirmedAt := at
	verification.ConfirmedAt = &confirmedAt
	s.records[token] = verification
	return true, nil
}

func (s *memoryVerificationStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[token]; !ok {
		return fmt.Errorf("%w: token %q", ErrVerificationNotFound, token)
	}
	delete(s.records, token)
	return nil
}

func (s *memoryVerificationStore) HasConfirmed(_ context.Context, apiToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, verification := range s.records {
		if verification.APIToken == apiToken && verification.ConfirmedAt != nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryVerificationStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for token, verification := range s.records {
		if verification.ConfirmedAt == nil && verification.ExpiresAt.Before(cutoff) {
			delete(s.records, token)
			removed++
		}
	}
	return removed, nil
}

func (s *memoryVerificationStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sequenceTokens struct {
	mu   sync.Mutex
	next int
}

func (g *sequenceTokens) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%08d-0000-4000-8000-%012d", g.next, g.next), nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	sent      []Notification
	failFirst int
	reject    bool
	err       error
}

func (n *recordingNotifier) Notify(_ context.Context, notification Notification) (DeliveryReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	if n.failFirst > 0 {
		n.failFirst--
		if n.err != nil {
			return DeliveryReceipt{}, n.err
		}
		return DeliveryReceipt{}, fmt.Errorf("smtp: 451 temporary failure")
	}
	if n.reject {
		return DeliveryReceipt{Accepted: false}, nil
	}
	return DeliveryReceipt{MessageID: fmt.Sprintf("msg-%d", len(n.sent)), Accepted: true}, nil
}

func (n *recordingNotifier) attempts() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *recordingNotifier) last() Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return Notification{}
	}
	return n.sent[len(n.sent)-1]
}

func noSleep(context.Context, time.Duration) error { return nil }

type brokerFixture struct {
	svc           *Service
	apiStore      *memoryAPICredentialStore
	verifications *memoryVerificationStore
	notifier      *recordingNotifier
	clock         *fakeClock
}

func newBrokerFixture(t *testing.T, opts ...Option) *brokerFixture {
	t.Helper()
	fixture := &brokerFixture{
		apiStore:      newMemoryAPICredentialStore(),
		verifications: newMemoryVerificationStore(),
		notifier:      &recordingNotifier{},
		clock:         newFakeClock(),
	}
	tokens := &sequenceTokens{}
	base := []Option{
		WithAPICredentialStore(fixture.apiStore),
		WithVerificationStore(fixture.verifications),
		WithNotifier(fixture.notifier),
		WithClock(fixture.clock.Now),
		WithTokenGenerator(tokens.Generate),
		WithSleeper(noSleep),
		WithJitterSource(func() float64 { return 0 }),
		WithLogger(stubLogger{}),
	}
	svc, err := NewService(Config{APIHost: "https://auth.example.test"}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func (f *brokerFixture) seedAPICredential(t *testing.T, credential APICredential) APICredential {
	t.Helper()
	if credential.Token == "" {
		credential.Token = testAPIToken
	}
	if credential.ExpirationSeconds == 0 {
		credential.ExpirationSeconds = 300
	}
	if credential.CallbackURI == "" {
		credential.CallbackURI = "https://client.example.test/aggie_auth"
	}
	if credential.Description == "" {
		credential.Description = "test client application"
	}
	created, err := f.apiStore.Create(context.Background(), credential)
	if err != nil {
		t.Fatalf("seed api credential: %v", err)
	}
	return created
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	const marker = "aggieToken="
	index := strings.Index(link, marker)
	if index < 0 {
		t.Fatalf("link %q has no verification token", link)
	}
	return link[index+len(marker):]
}

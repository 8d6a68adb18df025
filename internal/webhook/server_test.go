package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/suite"

	"github.com/kubotlabs/minebot/internal/mining"
)

type sentMessage struct {
	Channel string
	Text    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeNotifier) Send(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Channel: channelID, Text: text})
	return nil
}

func (f *fakeNotifier) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeNotifier) last() sentMessage {
	msgs := f.messages()
	if len(msgs) == 0 {
		return sentMessage{}
	}
	return msgs[len(msgs)-1]
}

// ServerSuite exercises the webhook routes against a real service with
// in-memory backends and a mock clock.
type ServerSuite struct {
	suite.Suite
	mock     *clock.Mock
	ledger   *mining.MemoryLedger
	notifier *fakeNotifier
	svc      *mining.Service
	ts       *httptest.Server
}

const testDuration = 10 * time.Second

func (s *ServerSuite) SetupTest() {
	s.mock = clock.NewMock()
	s.ledger = mining.NewMemoryLedger()
	s.notifier = &fakeNotifier{}
	s.svc = mining.NewService(s.mock, mining.NewMemoryStore(), s.ledger, s.notifier, mining.StaticOptions(mining.Options{
		SessionDuration: testDuration,
		RewardAmount:    50,
	}))
	s.ts = httptest.NewServer(NewServer(s.svc, s.notifier).Routes())
}

func (s *ServerSuite) TearDownTest() {
	s.ts.Close()
	s.svc.Close()
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

// postUpdate sends a Telegram-style update for the given user and text.
func (s *ServerSuite) postUpdate(userID int64, text string) *http.Response {
	payload := fmt.Sprintf(
		`{"update_id":1,"message":{"text":%q,"from":{"id":%d,"first_name":"Miner"},"chat":{"id":%d}}}`,
		text, userID, userID,
	)
	resp, err := http.Post(s.ts.URL+"/telegram/webhook", "application/json", bytes.NewBufferString(payload))
	s.Require().NoError(err)
	return resp
}

func (s *ServerSuite) TestMineCommand() {
	resp := s.postUpdate(42, "/mine")
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	status, err := s.svc.GetStatus(context.Background(), "42")
	s.Require().NoError(err)
	s.True(status.Mining)

	last := s.notifier.last()
	s.Equal("42", last.Channel)
	s.Contains(last.Text, "mining session has begun")
}

func (s *ServerSuite) TestMineTwiceRepliesAlreadyMining() {
	s.postUpdate(42, "/mine").Body.Close()
	s.postUpdate(42, "/mine").Body.Close()

	s.Contains(s.notifier.last().Text, "already mining")

	status, err := s.svc.GetStatus(context.Background(), "42")
	s.Require().NoError(err)
	s.True(status.Mining)
}

func (s *ServerSuite) TestStopCommand() {
	s.postUpdate(42, "/mine").Body.Close()
	s.postUpdate(42, "/stop").Body.Close()

	status, err := s.svc.GetStatus(context.Background(), "42")
	s.Require().NoError(err)
	s.False(status.Mining)

	s.Contains(s.notifier.last().Text, "Have a great day")

	// The cancelled session never pays out
	s.mock.Add(testDuration)
	balance, err := s.svc.Balance(context.Background(), "42")
	s.Require().NoError(err)
	s.Zero(balance)
}

func (s *ServerSuite) TestBalanceCommand() {
	s.postUpdate(42, "/balance").Body.Close()
	s.Contains(s.notifier.last().Text, "0 tokens")

	s.postUpdate(42, "/mine").Body.Close()
	s.mock.Add(testDuration)

	s.Require().Eventually(func() bool {
		balance, err := s.svc.Balance(context.Background(), "42")
		return err == nil && balance == 50
	}, 2*time.Second, 5*time.Millisecond)

	s.postUpdate(42, "/balance").Body.Close()
	s.Contains(s.notifier.last().Text, "balance is 50 tokens")
}

func (s *ServerSuite) TestStartCommand() {
	s.postUpdate(42, "/start").Body.Close()
	s.Contains(s.notifier.last().Text, "Welcome")
}

func (s *ServerSuite) TestEchoPlainText() {
	s.postUpdate(42, "hello bot").Body.Close()

	last := s.notifier.last()
	s.Equal("42", last.Channel)
	s.Equal("hello bot", last.Text)
}

func (s *ServerSuite) TestCommandWithBotSuffix() {
	s.postUpdate(42, "/mine@kubot_bot").Body.Close()

	status, err := s.svc.GetStatus(context.Background(), "42")
	s.Require().NoError(err)
	s.True(status.Mining)
}

func (s *ServerSuite) TestMalformedJSON() {
	resp, err := http.Post(s.ts.URL+"/telegram/webhook", "application/json", bytes.NewBufferString("{not json"))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *ServerSuite) TestUpdateWithoutMessage() {
	resp, err := http.Post(s.ts.URL+"/telegram/webhook", "application/json", bytes.NewBufferString(`{"update_id":7}`))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Empty(s.notifier.messages())
}

func (s *ServerSuite) TestHealthz() {
	resp, err := http.Get(s.ts.URL + "/healthz")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *ServerSuite) TestStatusEndpoint() {
	s.postUpdate(42, "/mine").Body.Close()

	resp, err := http.Get(s.ts.URL + "/api/status/42")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var body statusResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("42", body.UserID)
	s.True(body.Status.Mining)
	s.Zero(body.Balance)
}

func (s *ServerSuite) TestMetricsEndpoint() {
	s.postUpdate(42, "/mine").Body.Close()
	s.postUpdate(42, "/mine").Body.Close()

	resp, err := http.Get(s.ts.URL + "/api/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()

	var snap mining.MetricsSnapshot
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&snap))
	s.Equal(int64(1), snap.SessionsStarted)
	s.Equal(int64(1), snap.StartsRejected)
}

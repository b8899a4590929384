package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hirehub/hirehub-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "hirehub-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakeToken is a completed paho token.
type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakePaho records calls. Methods the client never uses fall through to
// the embedded nil interface.
type fakePaho struct {
	pahomqtt.Client

	mu           sync.Mutex
	connected    bool
	published    []published
	subscribed   map[string]pahomqtt.MessageHandler
	disconnected bool
	token        *fakeToken
}

func newFakePaho() *fakePaho {
	return &fakePaho{connected: true, subscribed: map[string]pahomqtt.MessageHandler{}, token: &fakeToken{}}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload any) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, _ := payload.([]byte) //nolint:errcheck // test fake
	f.published = append(f.published, published{topic, qos, retained, b})
	return f.token
}

func (f *fakePaho) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token.err == nil && !f.token.timeout {
		f.subscribed[topic] = cb
	}
	return f.token
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.subscribed, t)
	}
	return f.token
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	f.connected = false
	f.disconnected = true
	f.mu.Unlock()
}

func (f *fakePaho) deliver(topic string, payload []byte) {
	f.mu.Lock()
	var cb pahomqtt.MessageHandler
	for pattern, h := range f.subscribed {
		if topicMatches(pattern, topic) {
			cb = h
		}
	}
	f.mu.Unlock()
	if cb != nil {
		cb(f, &fakeMessage{topic: topic, payload: payload})
	}
}

func (f *fakePaho) lastPublished() published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[len(f.published)-1]
}

// topicMatches supports the single-level + wildcard only.
func topicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	id, ok := SessionIDFromTopic(topic)
	return ok && pattern == Topics{}.AllSessionCommands() && topic == Topics{}.SessionCommand(id)
}

type fakeMessage struct {
	pahomqtt.Message
	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string   { return m.topic }
func (m *fakeMessage) Payload() []byte { return m.payload }

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// connectedClient returns a Client wired to a fake paho client.
func connectedClient(t *testing.T) (*Client, *fakePaho) {
	t.Helper()
	fake := newFakePaho()
	c := newClient(testConfig())
	c.client = fake
	c.setConnected(true)
	return c, fake
}

func TestIsConnected_InitialState(t *testing.T) {
	if (&Client{}).IsConnected() {
		t.Error("IsConnected() should be false for an uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestClose_PublishesGracefulOffline(t *testing.T) {
	c, fake := connectedClient(t)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.IsConnected() || !fake.disconnected {
		t.Error("Close() should disconnect")
	}

	last := fake.lastPublished()
	if last.topic != "hirehub/system/status" || !last.retained {
		t.Fatalf("last publish = %+v, want retained system status", last)
	}
	var status statusPayload
	if err := json.Unmarshal(last.payload, &status); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if status.Status != "offline" || status.Reason != reasonGraceful || status.ClientID != "hirehub-test" {
		t.Errorf("status = %+v", status)
	}
}

func TestHealthCheck(t *testing.T) {
	c, fake := connectedClient(t)

	if err := c.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v", err)
	}

	fake.mu.Lock()
	fake.connected = false
	fake.mu.Unlock()
	if err := c.HealthCheck(t.Context()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck(disconnected) error = %v, want ErrNotConnected", err)
	}
}

func TestPublish_Validation(t *testing.T) {
	c, _ := connectedClient(t)

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "hirehub/x", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "hirehub/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"nil payload", "hirehub/x", nil, 0, nil},
		{"valid", "hirehub/x", []byte(`{}`), 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Publish() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublish_Failures(t *testing.T) {
	c, fake := connectedClient(t)

	fake.token = &fakeToken{timeout: true}
	if err := c.Publish("hirehub/x", nil, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("timeout: error = %v, want ErrPublishFailed", err)
	}

	fake.token = &fakeToken{err: errors.New("broker said no")}
	if err := c.Publish("hirehub/x", nil, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("token error: error = %v, want ErrPublishFailed", err)
	}

	fake.token = &fakeToken{}
	c.setConnected(false)
	if err := c.Publish("hirehub/x", nil, 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: error = %v, want ErrNotConnected", err)
	}
}

func TestPublishRetained_UsesConfiguredQoS(t *testing.T) {
	c, fake := connectedClient(t)

	if err := c.PublishRetained(Topics{}.SessionState("s1"), []byte(`{}`)); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}
	last := fake.lastPublished()
	if !last.retained || last.qos != 1 || last.topic != "hirehub/session/s1/state" {
		t.Errorf("publish = %+v", last)
	}
}

func TestSubscribe_TracksAndDelivers(t *testing.T) {
	c, fake := connectedClient(t)

	received := make(chan string, 1)
	err := c.Subscribe(Topics{}.AllSessionCommands(), 1, func(topic string, _ []byte) error {
		received <- topic
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !c.HasSubscription(Topics{}.AllSessionCommands()) || c.SubscriptionCount() != 1 {
		t.Error("subscription not tracked")
	}

	fake.deliver(Topics{}.SessionCommand("abc"), []byte(`{"action":"logout"}`))
	select {
	case got := <-received:
		if got != "hirehub/session/abc/command" {
			t.Errorf("handler topic = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	if err := c.Unsubscribe(Topics{}.AllSessionCommands()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Error("Unsubscribe() should forget the subscription")
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c, fake := connectedClient(t)
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: %v", err)
	}
	if err := c.Subscribe("hirehub/x", 5, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("invalid qos: %v", err)
	}
	if err := c.Subscribe("hirehub/x", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: %v", err)
	}

	fake.token = &fakeToken{err: errors.New("not authorised")}
	if err := c.Subscribe("hirehub/x", 1, noop); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("broker refusal: %v", err)
	}
	if c.HasSubscription("hirehub/x") {
		t.Error("failed subscription must not be tracked")
	}

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty): %v", err)
	}
	c.setConnected(false)
	if err := c.Subscribe("hirehub/x", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: %v", err)
	}
}

func TestHandler_ErrorsAndPanicsAreLogged(t *testing.T) {
	c, fake := connectedClient(t)
	logger := &mockLogger{}
	c.SetLogger(logger)

	if err := c.Subscribe("hirehub/a", 0, func(string, []byte) error { return errors.New("bad payload") }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := c.Subscribe("hirehub/b", 0, func(string, []byte) error { panic("boom") }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	fake.deliver("hirehub/a", nil)
	fake.deliver("hirehub/b", nil)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 || len(logger.errors) != 1 {
		t.Errorf("warns = %v, errors = %v", logger.warns, logger.errors)
	}
}

func TestReconnect_RestoresSubscriptionsAndCallbacks(t *testing.T) {
	c, fake := connectedClient(t)
	var connects, disconnects int
	c.SetOnConnect(func() { connects++ })
	c.SetOnDisconnect(func(error) { disconnects++ })

	if err := c.Subscribe("hirehub/a", 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	c.handleDisconnect(errors.New("network down"))
	if c.IsConnected() {
		t.Error("still connected after connection loss")
	}

	fake.mu.Lock()
	fake.subscribed = map[string]pahomqtt.MessageHandler{}
	fake.mu.Unlock()

	c.handleConnect()
	fake.mu.Lock()
	_, restored := fake.subscribed["hirehub/a"]
	fake.mu.Unlock()
	if !restored {
		t.Error("subscription not restored after reconnect")
	}
	if connects != 1 || disconnects != 1 {
		t.Errorf("callbacks: connects=%d disconnects=%d", connects, disconnects)
	}
	if last := fake.lastPublished(); last.topic != (Topics{}).SystemStatus() {
		t.Errorf("reconnect should publish online status, last = %s", last.topic)
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{Topics{}.SessionState("s1"), "hirehub/session/s1/state"},
		{Topics{}.SessionCommand("s1"), "hirehub/session/s1/command"},
		{Topics{}.AllSessionCommands(), "hirehub/session/+/command"},
		{Topics{}.SystemStatus(), "hirehub/system/status"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestSessionIDFromTopic(t *testing.T) {
	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"hirehub/session/abc/command", "abc", true},
		{"hirehub/session/abc/state", "abc", true},
		{"hirehub/session//command", "", false},
		{"hirehub/system/status", "", false},
		{"other/session/abc/command", "", false},
	}
	for _, tt := range tests {
		got, ok := SessionIDFromTopic(tt.topic)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("SessionIDFromTopic(%q) = %q, %v", tt.topic, got, ok)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "core"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "hirehub-test" || opts.Username != "core" {
		t.Errorf("ClientID = %q, Username = %q", opts.ClientID, opts.Username)
	}
	if !opts.AutoReconnect || opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("reconnect options = %v, %v", opts.AutoReconnect, opts.MaxReconnectInterval)
	}

	configureLWT(opts, cfg.Broker.ClientID)
	if !opts.WillEnabled || opts.WillTopic != "hirehub/system/status" || !opts.WillRetained {
		t.Errorf("LWT = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
}

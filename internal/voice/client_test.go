package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	delays []time.Duration
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	c.delays = append(c.delays, d)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *fakeClock) scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

type fakeSource struct {
	once   sync.Once
	closed chan struct{}
}

func newFakeSource() *fakeSource { return &fakeSource{closed: make(chan struct{})} }

func (s *fakeSource) Read([]byte) (int, error) {
	<-s.closed
	return 0, io.EOF
}

func (s *fakeSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeMicrophone struct {
	mu    sync.Mutex
	err   error
	opens int
}

func (m *fakeMicrophone) Open(context.Context, int) (AudioSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	if m.err != nil {
		return nil, m.err
	}
	return newFakeSource(), nil
}

func (m *fakeMicrophone) deny(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

type fakeTokens struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTokens) Token(_ context.Context, questionID, resumeID string) (Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Credential{}, f.err
	}
	return Credential{ClientSecret: "ek_" + questionID + resumeID, Model: "gpt-4o-realtime-preview"}, nil
}

func (f *fakeTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeConn struct {
	h Handlers

	mu     sync.Mutex
	sent   []any
	closed bool
}

func (c *fakeConn) Send(_ context.Context, event any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, event)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	dials chan *fakeConn
	err   error
}

func (d *fakeDialer) SampleRate() int { return 24000 }

func (d *fakeDialer) Dial(_ context.Context, _ Credential, _ AudioSource, h Handlers) (Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	conn := &fakeConn{h: h}
	d.dials <- conn
	return conn, nil
}

type harness struct {
	client *Client
	clock  *fakeClock
	mic    *fakeMicrophone
	tokens *fakeTokens
	dialer *fakeDialer

	mu      sync.Mutex
	errs    []error
	states  []State
	entries []Entry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:  &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)},
		mic:    &fakeMicrophone{},
		tokens: &fakeTokens{},
		dialer: &fakeDialer{dials: make(chan *fakeConn, 16)},
	}
	client, err := NewClient(Options{
		QuestionID: "q1",
		ResumeID:   "r1",
		Tokens:     h.tokens,
		Dialer:     h.dialer,
		Microphone: h.mic,
		Clock:      h.clock,
		OnStateChange: func(s State) {
			h.mu.Lock()
			h.states = append(h.states, s)
			h.mu.Unlock()
		},
		OnTranscript: func(e Entry) {
			h.mu.Lock()
			h.entries = append(h.entries, e)
			h.mu.Unlock()
		},
		OnError: func(err error) {
			h.mu.Lock()
			h.errs = append(h.errs, err)
			h.mu.Unlock()
		},
	})
	require.NoError(t, err)
	h.client = client
	t.Cleanup(client.Stop)
	return h
}

func (h *harness) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case conn := <-h.dialer.dials:
		return conn
	case <-time.After(2 * time.Second):
		require.FailNow(t, "expected a dial")
		return nil
	}
}

func (h *harness) assertNoDial(t *testing.T) {
	t.Helper()
	select {
	case <-h.dialer.dials:
		assert.Fail(t, "unexpected dial")
	case <-time.After(50 * time.Millisecond):
	}
}

func (h *harness) errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

func (h *harness) connect(t *testing.T) *fakeConn {
	t.Helper()
	h.client.Start()
	conn := h.nextConn(t)
	conn.h.OnOpen()
	require.Equal(t, StateConnected, h.client.State())
	return conn
}

func TestNewClientRequiresDependencies(t *testing.T) {
	_, err := NewClient(Options{Tokens: &fakeTokens{}})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestClientGivesUpAfterThreeReconnects(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	conn.h.OnTransportFailed(errors.New("ice failed"))
	for attempt := 1; attempt <= 3; attempt++ {
		assert.Equal(t, StateDisconnected, h.client.State())
		assert.Equal(t, attempt, h.client.Attempts())

		delay := time.Duration(attempt) * 2 * time.Second
		h.clock.Advance(delay - time.Millisecond)
		h.assertNoDial(t)
		h.clock.Advance(time.Millisecond)

		conn = h.nextConn(t)
		conn.h.OnTransportFailed(errors.New("ice failed"))
	}

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}, h.clock.scheduled())
	assert.Equal(t, StateDisconnected, h.client.State())
	assert.Zero(t, h.clock.pending())
	errs := h.errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrRetriesExhausted)
	assert.EqualError(t, errs[0], "connection failed after maximum retry attempts")

	h.clock.Advance(time.Minute)
	h.assertNoDial(t)
	assert.Equal(t, 4, h.tokens.count())
}

func TestClientResetsBackoffAfterSuccessfulReconnect(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	conn.h.OnChannelClosed(nil)
	h.clock.Advance(2 * time.Second)
	conn = h.nextConn(t)
	conn.h.OnOpen()
	require.Equal(t, StateConnected, h.client.State())
	assert.Zero(t, h.client.Attempts())

	conn.h.OnTransportClosed(errors.New("peer connection disconnected"))
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, h.clock.scheduled())
	assert.Empty(t, h.errors())
}

func TestClientInitialFailureIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.client.Start()
	conn := h.nextConn(t)

	cause := errors.New("ice failed before open")
	conn.h.OnTransportFailed(cause)

	assert.Equal(t, StateDisconnected, h.client.State())
	assert.Zero(t, h.clock.pending())
	errs := h.errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], cause)
	assert.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)
}

func TestClientSignalingErrorIsReported(t *testing.T) {
	h := newHarness(t)
	h.dialer.err = errors.New("signaling returned 401")

	h.client.Start()

	require.Eventually(t, func() bool { return len(h.errors()) == 1 }, time.Second, 5*time.Millisecond)
	assert.EqualError(t, h.errors()[0], "signaling returned 401")
	assert.Equal(t, StateDisconnected, h.client.State())
	assert.Zero(t, h.clock.pending())
}

func TestClientMicrophoneDeniedIsTerminal(t *testing.T) {
	h := newHarness(t)
	h.mic.deny(fmt.Errorf("%w: NotAllowedError", ErrMicrophoneDenied))

	h.client.Start()

	require.Eventually(t, func() bool { return len(h.errors()) == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.errors()[0], ErrMicrophoneDenied)
	assert.Equal(t, StateDisconnected, h.client.State())
	assert.Zero(t, h.tokens.count())
}

func TestClientMicrophoneLossDuringReconnectStopsRetrying(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	h.mic.deny(ErrNoMicrophone)
	conn.h.OnTransportFailed(nil)
	h.clock.Advance(2 * time.Second)

	require.Eventually(t, func() bool { return len(h.errors()) == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.errors()[0], ErrNoMicrophone)
	assert.Zero(t, h.clock.pending())
}

func TestClientStartWhileActiveIsNoop(t *testing.T) {
	h := newHarness(t)
	h.client.Start()
	h.nextConn(t)

	h.client.Start()

	h.assertNoDial(t)
	assert.Equal(t, StateConnecting, h.client.State())
	assert.Equal(t, 1, h.tokens.count())
	assert.Empty(t, h.errors())
}

func TestClientIgnoresEventsFromStaleAttempt(t *testing.T) {
	h := newHarness(t)
	first := h.connect(t)

	first.h.OnTransportFailed(nil)
	h.clock.Advance(2 * time.Second)
	second := h.nextConn(t)

	first.h.OnOpen()
	first.h.OnMessage([]byte(`{"type":"conversation.item.created","item":{"id":"item_9","role":"assistant","content":[{"type":"text","text":"stale"}]}}`))
	first.h.OnTransportFailed(nil)
	assert.Equal(t, StateConnecting, h.client.State())
	assert.Empty(t, h.client.Transcript())
	assert.Equal(t, 1, h.client.Attempts())

	second.h.OnOpen()
	assert.Equal(t, StateConnected, h.client.State())
}

func TestClientDispatchesServerEvents(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	messages := []string{
		`{"type":"conversation.item.created","item":{"id":"item_1","type":"message","role":"assistant","content":[{"type":"text","text":"Walk me through your last outage."}]}}`,
		`{"type":"conversation.item.created","item":{"id":"item_2","type":"message","role":"user","content":[{"type":"input_audio","transcript":null}]}}`,
		`{"type":"conversation.item.input_audio_transcription.completed","item_id":"item_2","transcript":"The cache stampeded after a deploy."}`,
		`{"type":"response.audio.delta","item_id":"item_3","delta":"AAAA"}`,
		`{"type":"response.audio_transcript.done","item_id":"item_3","transcript":"How did you detect it?"}`,
		`{"type":"response.audio_transcript.done","item_id":"item_3","transcript":"How did you detect it?"}`,
		`not json`,
	}
	for _, msg := range messages {
		conn.h.OnMessage([]byte(msg))
	}
	assert.True(t, h.client.Speaking(RoleAssistant))
	conn.h.OnMessage([]byte(`{"type":"response.audio.done"}`))
	assert.False(t, h.client.Speaking(RoleAssistant))

	conn.h.OnMessage([]byte(`{"type":"input_audio_buffer.speech_started"}`))
	assert.True(t, h.client.Speaking(RoleUser))
	conn.h.OnMessage([]byte(`{"type":"input_audio_buffer.speech_stopped"}`))
	assert.False(t, h.client.Speaking(RoleUser))

	entries := h.client.Transcript()
	require.Len(t, entries, 3)
	assert.Equal(t, []Role{RoleAssistant, RoleUser, RoleAssistant}, []Role{entries[0].Role, entries[1].Role, entries[2].Role})
	assert.Equal(t, "The cache stampeded after a deploy.", entries[1].Content)
	assert.Equal(t, "item_3", entries[2].ID)
	h.mu.Lock()
	assert.Len(t, h.entries, 3)
	h.mu.Unlock()

	conn.h.OnMessage([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad item"}}`))
	errs := h.errors()
	require.Len(t, errs, 1)
	var serverErr *ServerError
	require.ErrorAs(t, errs[0], &serverErr)
	assert.Equal(t, "bad item", serverErr.Message)
	assert.Equal(t, StateConnected, h.client.State())
}

func TestClientStopCancelsRetryAndRestartClearsTranscript(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)
	conn.h.OnMessage([]byte(`{"type":"conversation.item.input_audio_transcription.completed","item_id":"item_1","transcript":"hello"}`))
	require.Len(t, h.client.Transcript(), 1)

	conn.h.OnTransportFailed(nil)
	require.Equal(t, 1, h.clock.pending())
	h.client.Stop()
	assert.Zero(t, h.clock.pending())
	h.clock.Advance(time.Minute)
	h.assertNoDial(t)
	assert.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)

	h.client.Start()
	h.nextConn(t)
	assert.Empty(t, h.client.Transcript())
	assert.Empty(t, h.errors())
}

func TestClientSendText(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	assert.ErrorIs(t, h.client.SendText(ctx, "hi"), ErrConnectionLost)

	conn := h.connect(t)
	require.Eventually(t, func() bool { return h.client.SendText(ctx, "Can you repeat the question?") == nil }, time.Second, 5*time.Millisecond)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.sent, 2)
	assert.Equal(t, responseCreate, conn.sent[1])
}

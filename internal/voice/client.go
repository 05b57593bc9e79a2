package voice

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Bill1907/prepup/internal/shared/telemetry"
)

var ErrMissingDependency = errors.New("voice: token source, dialer and microphone must be set")

type Options struct {
	QuestionID string
	ResumeID   string

	Tokens     TokenSource
	Dialer     Dialer
	Microphone Microphone
	Policy     Policy
	Clock      Clock

	OnStateChange func(State)
	OnTranscript  func(Entry)
	OnError       func(error)
	OnSpeaking    func(role Role, speaking bool)
}

// Client drives one mock interview session: it owns the microphone and the
// vendor connection, feeds the transcript and reconnects per Policy.
type Client struct {
	opts       Options
	clock      Clock
	transcript *Transcript

	mu         sync.Mutex
	machine    Machine
	conn       Conn
	mic        AudioSource
	cancelOpen context.CancelFunc
	timer      Timer
	speaking   map[Role]bool
}

func NewClient(opts Options) (*Client, error) {
	if opts.Tokens == nil || opts.Dialer == nil || opts.Microphone == nil {
		return nil, ErrMissingDependency
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Client{
		opts:       opts,
		clock:      clock,
		transcript: NewTranscript(),
		machine:    NewMachine(opts.Policy),
		speaking:   make(map[Role]bool),
	}, nil
}

// Start begins a session. Calling it while connecting or connected only logs a
// warning.
func (c *Client) Start() { c.dispatch(Event{Kind: EventStart}) }

// Stop ends the session and cancels any pending reconnect.
func (c *Client) Stop() { c.dispatch(Event{Kind: EventStop}) }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State
}

// Attempts is the number of reconnects made since the last successful connect.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Attempts
}

func (c *Client) Transcript() []Entry { return c.transcript.Entries() }

func (c *Client) Speaking(role Role) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking[role]
}

// SendText adds a typed user turn and asks for a response.
func (c *Client) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("text is required")
	}
	c.mu.Lock()
	conn := c.conn
	connected := c.machine.State == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrConnectionLost
	}
	if err := conn.Send(ctx, textMessage(text)); err != nil {
		return err
	}
	return conn.Send(ctx, responseCreate)
}

func (c *Client) dispatch(ev Event) {
	var after []func()

	c.mu.Lock()
	next, effects := c.machine.Next(ev)
	c.machine = next
	for _, eff := range effects {
		switch eff.Kind {
		case EffectResetTranscript:
			c.transcript.Clear()
			c.speaking = make(map[Role]bool)
		case EffectOpen:
			ctx, cancel := context.WithCancel(context.Background())
			c.cancelOpen = cancel
			go c.open(ctx, eff.Gen)
		case EffectTeardown:
			after = append(after, c.detachLocked())
		case EffectScheduleRetry:
			gen, delay := eff.Gen, eff.Delay
			telemetry.Warn("voice.reconnect_scheduled", map[string]any{
				"attempt":  next.Attempts,
				"delay_ms": delay.Milliseconds(),
			})
			c.timer = c.clock.AfterFunc(delay, func() {
				c.dispatch(Event{Kind: EventRetryTimer, Gen: gen})
			})
		case EffectCancelRetry:
			if c.timer != nil {
				c.timer.Stop()
				c.timer = nil
			}
		case EffectReportError:
			err := eff.Err
			after = append(after, func() { c.reportError(err) })
		case EffectWarn:
			telemetry.Warn("voice.start_ignored", map[string]any{
				"state": string(next.State),
				"error": eff.Err.Error(),
			})
		case EffectStateChanged:
			state := eff.State
			if cb := c.opts.OnStateChange; cb != nil {
				after = append(after, func() { cb(state) })
			}
		}
	}
	c.mu.Unlock()

	for _, f := range after {
		f()
	}
}

// open runs one connection attempt. Results are discarded when the attempt
// has been superseded.
func (c *Client) open(ctx context.Context, gen uint64) {
	fail := func(err error) {
		c.dispatch(Event{Kind: EventSetupFailed, Gen: gen, Err: err})
	}

	mic, err := c.opts.Microphone.Open(ctx, c.opts.Dialer.SampleRate())
	if err != nil {
		fail(err)
		return
	}
	if !c.adopt(gen, func() { c.mic = mic }) {
		closeQuietly("microphone", mic)
		return
	}

	cred, err := c.opts.Tokens.Token(ctx, c.opts.QuestionID, c.opts.ResumeID)
	if err != nil {
		fail(err)
		return
	}

	conn, err := c.opts.Dialer.Dial(ctx, cred, mic, c.handlers(gen))
	if err != nil {
		fail(err)
		return
	}
	if !c.adopt(gen, func() { c.conn = conn }) {
		closeQuietly("connection", conn)
	}
}

func (c *Client) adopt(gen uint64, set func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine.Gen != gen {
		return false
	}
	set()
	return true
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Gen == gen && c.machine.State == StateConnected
}

func (c *Client) handlers(gen uint64) Handlers {
	return Handlers{
		OnOpen: func() {
			c.dispatch(Event{Kind: EventChannelOpen, Gen: gen})
		},
		OnMessage: func(data []byte) {
			c.handleMessage(gen, data)
		},
		OnChannelClosed: func(err error) {
			c.dispatch(Event{Kind: EventChannelClosed, Gen: gen, Err: err})
		},
		OnTransportFailed: func(err error) {
			c.dispatch(Event{Kind: EventTransportFailed, Gen: gen, Err: err})
		},
		OnTransportClosed: func(err error) {
			c.dispatch(Event{Kind: EventTransportClosed, Gen: gen, Err: err})
		},
	}
}

func (c *Client) handleMessage(gen uint64, data []byte) {
	if !c.current(gen) {
		return
	}
	ev, err := ParseServerEvent(data)
	if err != nil {
		telemetry.Warn("voice.event_invalid", map[string]any{"error": err.Error()})
		return
	}

	switch ev.Type {
	case eventItemCreated:
		if ev.Item == nil {
			return
		}
		c.record(ev.Item.ID, Role(ev.Item.Role), ev.Item.Text())
	case eventInputTranscription:
		c.record(ev.ItemID, RoleUser, ev.Transcript)
	case eventAudioTranscriptDone:
		c.record(ev.ItemID, RoleAssistant, ev.Transcript)
	case eventAudioDelta:
		c.setSpeaking(RoleAssistant, true)
	case eventAudioDone:
		c.setSpeaking(RoleAssistant, false)
	case eventSpeechStarted:
		c.setSpeaking(RoleUser, true)
	case eventSpeechStopped:
		c.setSpeaking(RoleUser, false)
	case eventError:
		if ev.Error != nil {
			c.reportError(ev.Error)
		}
	}
}

func (c *Client) record(itemID string, role Role, content string) {
	entry, ok := c.transcript.AppendItem(itemID, role, content, c.clock.Now())
	if !ok {
		return
	}
	if cb := c.opts.OnTranscript; cb != nil {
		cb(entry)
	}
}

func (c *Client) setSpeaking(role Role, speaking bool) {
	c.mu.Lock()
	changed := c.speaking[role] != speaking
	c.speaking[role] = speaking
	c.mu.Unlock()
	if changed && c.opts.OnSpeaking != nil {
		c.opts.OnSpeaking(role, speaking)
	}
}

func (c *Client) reportError(err error) {
	telemetry.Error("voice.error", map[string]any{"error": err.Error()})
	if cb := c.opts.OnError; cb != nil {
		cb(err)
	}
}

// detachLocked takes ownership of the live resources and returns a closer
// that releases them outside the lock.
func (c *Client) detachLocked() func() {
	conn, mic, cancel := c.conn, c.mic, c.cancelOpen
	c.conn, c.mic, c.cancelOpen = nil, nil, nil
	c.speaking = make(map[Role]bool)
	return func() {
		if cancel != nil {
			cancel()
		}
		if conn != nil {
			closeQuietly("connection", conn)
		}
		if mic != nil {
			closeQuietly("microphone", mic)
		}
	}
}

type closer interface {
	Close() error
}

func closeQuietly(what string, res closer) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Warn("voice.teardown_panic", map[string]any{"resource": what, "panic": r})
		}
	}()
	if err := res.Close(); err != nil {
		telemetry.Warn("voice.teardown_failed", map[string]any{"resource": what, "error": err.Error()})
	}
}

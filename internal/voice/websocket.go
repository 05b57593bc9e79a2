package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
)

const (
	defaultRealtimeWSURL = "wss://api.openai.com/v1/realtime"
	pcm16SampleRate      = 24000
)

// WebSocketDialer connects to the realtime websocket endpoint. Audio is sent as
// base64 PCM16 at 24 kHz. The session counts as open once session.created
// arrives.
type WebSocketDialer struct {
	URL     string
	Dialer  *websocket.Dialer
	Speaker Speaker
}

func (d *WebSocketDialer) SampleRate() int { return pcm16SampleRate }

func (d *WebSocketDialer) Dial(ctx context.Context, cred Credential, mic AudioSource, h Handlers) (Conn, error) {
	endpoint := d.URL
	if endpoint == "" {
		endpoint = defaultRealtimeWSURL
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	if cred.Model != "" {
		q := u.Query()
		q.Set("model", cred.Model)
		u.RawQuery = q.Encode()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.ClientSecret)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &llm.HTTPError{Provider: "openai", StatusCode: resp.StatusCode, Body: err.Error()}
		}
		return nil, fmt.Errorf("dial realtime websocket: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)
	conn := &wsConn{ws: ws, cancel: cancel}

	group.Go(func() error {
		conn.readLoop(d.Speaker, h)
		return nil
	})
	group.Go(func() error {
		return pumpFrames(groupCtx, mic, frameSize(pcm16SampleRate), func(frame []byte) error {
			return conn.Send(groupCtx, map[string]string{
				"type":  "input_audio_buffer.append",
				"audio": base64.StdEncoding.EncodeToString(frame),
			})
		})
	})
	go func() {
		if err := group.Wait(); err != nil && !errors.Is(err, ErrConnectionLost) {
			telemetry.Warn("voice.websocket_audio_stopped", map[string]any{"error": err.Error()})
		}
	}()
	return conn, nil
}

type wsConn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc

	writeMu sync.Mutex
	mu      sync.Mutex
	closed  bool
}

func (c *wsConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *wsConn) readLoop(speaker Speaker, h Handlers) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if h.OnChannelClosed != nil {
					h.OnChannelClosed(nil)
				}
				return
			}
			if h.OnTransportFailed != nil {
				h.OnTransportFailed(err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if typ := observeAudio(speaker, data, true); typ == eventSessionCreated && h.OnOpen != nil {
			h.OnOpen()
		}
		if h.OnMessage != nil {
			h.OnMessage(data)
		}
	}
}

func (c *wsConn) Send(_ context.Context, event any) error {
	if c.isClosed() {
		return ErrConnectionLost
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(event)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}

// observeAudio routes speaker-relevant events and returns the event type.
// Audio deltas are only decoded when the transport carries audio in-band.
func observeAudio(speaker Speaker, data []byte, inBand bool) string {
	var head struct {
		Type  string `json:"type"`
		Delta string `json:"delta"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	if speaker == nil {
		return head.Type
	}
	switch head.Type {
	case eventAudioDelta:
		if !inBand || strings.TrimSpace(head.Delta) == "" {
			break
		}
		pcm, err := base64.StdEncoding.DecodeString(head.Delta)
		if err != nil {
			telemetry.Warn("voice.audio_delta_invalid", map[string]any{"error": err.Error()})
			break
		}
		speaker.Play(pcm)
	case eventSpeechStarted:
		speaker.Flush()
	}
	return head.Type
}

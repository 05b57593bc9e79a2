package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/zaf/g711"
	"golang.org/x/sync/errgroup"

	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
)

const (
	defaultRealtimeBaseURL = "https://api.openai.com"
	eventsChannelLabel     = "oai-events"
	pcmuSampleRate         = 8000
)

var ErrTransportFailed = errors.New("peer connection failed")

// WebRTCDialer negotiates a peer connection with the realtime API. Audio is
// carried as PCMU at 8 kHz; events travel on the oai-events data channel.
type WebRTCDialer struct {
	BaseURL    string
	HTTPClient *http.Client
	ICEServers []webrtc.ICEServer
	Speaker    Speaker
}

func (d *WebRTCDialer) SampleRate() int { return pcmuSampleRate }

func (d *WebRTCDialer) Dial(ctx context.Context, cred Credential, mic AudioSource, h Handlers) (Conn, error) {
	api, err := pcmuAPI()
	if err != nil {
		return nil, err
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: d.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)
	conn := &webrtcConn{pc: pc, cancel: cancel, group: group}
	fail := func(err error) (Conn, error) {
		_ = conn.Close()
		return nil, err
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: pcmuSampleRate, Channels: 1},
		"audio", "prepup-mic",
	)
	if err != nil {
		return fail(fmt.Errorf("create audio track: %w", err))
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fail(fmt.Errorf("add audio track: %w", err))
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		group.Go(func() error { return playRemote(groupCtx, remote, d.Speaker) })
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if conn.isClosed() {
			return
		}
		switch state {
		case webrtc.PeerConnectionStateFailed:
			if h.OnTransportFailed != nil {
				h.OnTransportFailed(ErrTransportFailed)
			}
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
			if h.OnTransportClosed != nil {
				h.OnTransportClosed(fmt.Errorf("peer connection %s", state))
			}
		}
	})

	dc, err := pc.CreateDataChannel(eventsChannelLabel, nil)
	if err != nil {
		return fail(fmt.Errorf("create data channel: %w", err))
	}
	conn.dc = dc
	dc.OnOpen(func() {
		if h.OnOpen != nil {
			h.OnOpen()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !msg.IsString {
			return
		}
		observeAudio(d.Speaker, msg.Data, false)
		if h.OnMessage != nil {
			h.OnMessage(msg.Data)
		}
	})
	dc.OnClose(func() {
		if !conn.isClosed() && h.OnChannelClosed != nil {
			h.OnChannelClosed(nil)
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fail(fmt.Errorf("create offer: %w", err))
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fail(fmt.Errorf("set local description: %w", err))
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	answer, err := d.exchange(ctx, cred, pc.LocalDescription().SDP)
	if err != nil {
		return fail(err)
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return fail(fmt.Errorf("set remote description: %w", err))
	}

	group.Go(func() error {
		return pumpFrames(groupCtx, mic, frameSize(pcmuSampleRate), func(frame []byte) error {
			return track.WriteSample(media.Sample{Data: g711.EncodeUlaw(frame), Duration: frameDuration})
		})
	})
	go func() {
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			telemetry.Warn("voice.webrtc_audio_stopped", map[string]any{"error": err.Error()})
		}
	}()
	return conn, nil
}

// exchange posts the local offer and returns the vendor's SDP answer.
func (d *WebRTCDialer) exchange(ctx context.Context, cred Credential, offer string) (string, error) {
	base := strings.TrimRight(d.BaseURL, "/")
	if base == "" {
		base = defaultRealtimeBaseURL
	}
	endpoint := base + "/v1/realtime"
	if cred.Model != "" {
		endpoint += "?model=" + url.QueryEscape(cred.Model)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offer))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+cred.ClientSecret)
	req.Header.Set("Content-Type", "application/sdp")

	client := d.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchange sdp: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read sdp answer: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &llm.HTTPError{Provider: "openai", StatusCode: resp.StatusCode, Body: string(body)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", fmt.Errorf("exchange sdp: empty answer")
	}
	return string(body), nil
}

func pcmuAPI() (*webrtc.API, error) {
	engine := &webrtc.MediaEngine{}
	err := engine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: pcmuSampleRate, Channels: 1},
		PayloadType:        0,
	}, webrtc.RTPCodecTypeAudio)
	if err != nil {
		return nil, fmt.Errorf("register pcmu: %w", err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(engine)), nil
}

func playRemote(ctx context.Context, remote *webrtc.TrackRemote, speaker Speaker) error {
	for ctx.Err() == nil {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if speaker != nil && len(pkt.Payload) > 0 {
			speaker.Play(g711.DecodeUlaw(pkt.Payload))
		}
	}
	return nil
}

type webrtcConn struct {
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	cancel context.CancelFunc
	group  *errgroup.Group

	mu     sync.Mutex
	closed bool
}

func (c *webrtcConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *webrtcConn) Send(_ context.Context, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.dc == nil {
		return ErrConnectionLost
	}
	return c.dc.SendText(string(payload))
}

// Close shuts the data channel then the peer connection. Both are attempted
// even if the first fails.
func (c *webrtcConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	var errs []error
	if c.dc != nil {
		if err := c.dc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data channel: %w", err))
		}
	}
	if err := c.pc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close peer connection: %w", err))
	}
	return errors.Join(errs...)
}

// Package device binds the voice client to local audio hardware: malgo for
// capture and oto for playback.
package device

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/Bill1907/prepup/internal/voice"
)

const channels = 1

// Microphone opens capture devices from a shared malgo context.
type Microphone struct {
	ctx *malgo.AllocatedContext
}

func NewMicrophone() (*Microphone, error) {
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime
	ctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Microphone{ctx: ctx}, nil
}

// Open starts the default capture device at sampleRate.
func (m *Microphone) Open(_ context.Context, sampleRate int) (voice.AudioSource, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", voice.ErrNoMicrophone, err)
	}
	if len(devices) == 0 {
		return nil, voice.ErrNoMicrophone
	}

	src := &captureSource{buf: make([]byte, 0, sampleRate*2)}
	src.cond = sync.NewCond(&src.mu)

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = channels
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInMilliseconds = 20

	dev, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) { src.push(in) },
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", voice.ErrMicrophoneDenied, err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("%w: %v", voice.ErrMicrophoneDenied, err)
	}
	src.device = dev
	return src, nil
}

func (m *Microphone) Close() error {
	if m.ctx == nil {
		return nil
	}
	err := m.ctx.Uninit()
	m.ctx.Free()
	m.ctx = nil
	return err
}

// captureSource buffers callback data for blocking reads.
type captureSource struct {
	device *malgo.Device

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func (s *captureSource) push(p []byte) {
	s.mu.Lock()
	if !s.closed {
		s.buf = append(s.buf, p...)
	}
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *captureSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *captureSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.buf = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	if s.device != nil {
		err := s.device.Stop()
		s.device.Uninit()
		return err
	}
	return nil
}

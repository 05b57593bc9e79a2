package voice

import (
	"context"
	"io"
	"time"
)

// Credential is the ephemeral secret issued for one session.
type Credential struct {
	ClientSecret string    `json:"client_secret"`
	SessionID    string    `json:"session_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	Model        string    `json:"model"`
}

type TokenSource interface {
	Token(ctx context.Context, questionID, resumeID string) (Credential, error)
}

// AudioSource yields mono PCM16LE frames until closed.
type AudioSource interface {
	io.ReadCloser
}

// Microphone opens capture at the requested rate. Implementations return
// ErrMicrophoneDenied or ErrNoMicrophone (possibly wrapped) when capture is
// impossible.
type Microphone interface {
	Open(ctx context.Context, sampleRate int) (AudioSource, error)
}

// Speaker plays mono PCM16LE at the rate of the dialer it is paired with.
type Speaker interface {
	Play(pcm []byte)
	Flush()
}

// Handlers receive transport signals. They may be called from any goroutine.
type Handlers struct {
	OnOpen            func()
	OnMessage         func(data []byte)
	OnChannelClosed   func(err error)
	OnTransportFailed func(err error)
	OnTransportClosed func(err error)
}

// Conn is one established vendor session.
type Conn interface {
	Send(ctx context.Context, event any) error
	Close() error
}

// Dialer establishes a session with the vendor using a captured audio source.
type Dialer interface {
	SampleRate() int
	Dial(ctx context.Context, cred Credential, mic AudioSource, h Handlers) (Conn, error)
}

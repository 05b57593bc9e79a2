package voice

import (
	"errors"
	"time"
)

var (
	ErrRetriesExhausted = errors.New("connection failed after maximum retry attempts")
	ErrMicrophoneDenied = errors.New("microphone access denied")
	ErrNoMicrophone     = errors.New("no microphone available")
	ErrSessionActive    = errors.New("voice session already active")
	ErrConnectionLost   = errors.New("voice connection lost")
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 2 * time.Second
)

// Policy bounds reconnection. Attempt n waits BaseDelay*n.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

func (p Policy) normalized() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	return p
}

// Delay returns the wait before the given 1-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.normalized().BaseDelay * time.Duration(attempt)
}

// terminal reports whether err is a local condition a retry cannot fix.
func terminal(err error) bool {
	return errors.Is(err, ErrMicrophoneDenied) || errors.Is(err, ErrNoMicrophone)
}

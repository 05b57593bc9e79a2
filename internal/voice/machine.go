package voice

import "time"

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

type EventKind int

const (
	EventStart EventKind = iota
	EventStop
	EventChannelOpen
	EventChannelClosed
	EventTransportFailed
	EventTransportClosed
	EventSetupFailed
	EventRetryTimer
)

// Event is an input to the machine. Gen ties transport events to the attempt
// that produced them.
type Event struct {
	Kind EventKind
	Gen  uint64
	Err  error
}

type EffectKind int

const (
	EffectResetTranscript EffectKind = iota
	EffectOpen
	EffectTeardown
	EffectScheduleRetry
	EffectCancelRetry
	EffectReportError
	EffectWarn
	EffectStateChanged
)

type Effect struct {
	Kind  EffectKind
	Gen   uint64
	Delay time.Duration
	Err   error
	State State
}

// Machine is the connection lifecycle without any I/O. Next returns the new
// machine and the effects the caller must perform in order.
type Machine struct {
	Policy        Policy
	State         State
	Attempts      int
	Gen           uint64
	Live          bool
	ConnectedOnce bool
	RetryPending  bool
}

func NewMachine(policy Policy) Machine {
	return Machine{Policy: policy.normalized(), State: StateDisconnected}
}

func (m Machine) Next(ev Event) (Machine, []Effect) {
	if m.State == "" {
		m.State = StateDisconnected
	}
	m.Policy = m.Policy.normalized()

	switch ev.Kind {
	case EventStart:
		return m.start()
	case EventStop:
		return m.stop()
	case EventChannelOpen:
		if ev.Gen != m.Gen || m.State != StateConnecting {
			return m, nil
		}
		m.State = StateConnected
		m.Attempts = 0
		m.ConnectedOnce = true
		return m, []Effect{{Kind: EffectStateChanged, State: m.State}}
	case EventChannelClosed, EventTransportFailed, EventTransportClosed:
		if ev.Gen != m.Gen || m.State == StateDisconnected {
			return m, nil
		}
		return m.fail(ev.Err)
	case EventSetupFailed:
		if ev.Gen != m.Gen || m.State != StateConnecting {
			return m, nil
		}
		return m.fail(ev.Err)
	case EventRetryTimer:
		if ev.Gen != m.Gen || !m.RetryPending || !m.Live {
			return m, nil
		}
		m.RetryPending = false
		m.State = StateConnecting
		return m, []Effect{
			{Kind: EffectStateChanged, State: m.State},
			{Kind: EffectOpen, Gen: m.Gen},
		}
	}
	return m, nil
}

func (m Machine) start() (Machine, []Effect) {
	if m.State != StateDisconnected {
		return m, []Effect{{Kind: EffectWarn, Err: ErrSessionActive}}
	}
	var effects []Effect
	if m.RetryPending {
		m.RetryPending = false
		effects = append(effects, Effect{Kind: EffectCancelRetry})
	}
	m.Gen++
	m.Live = true
	m.ConnectedOnce = false
	m.State = StateConnecting
	return m, append(effects,
		Effect{Kind: EffectResetTranscript},
		Effect{Kind: EffectStateChanged, State: m.State},
		Effect{Kind: EffectOpen, Gen: m.Gen},
	)
}

func (m Machine) stop() (Machine, []Effect) {
	var effects []Effect
	if m.RetryPending {
		m.RetryPending = false
		effects = append(effects, Effect{Kind: EffectCancelRetry})
	}
	m.Live = false
	if m.State == StateDisconnected {
		return m, effects
	}
	m.Gen++
	m.State = StateDisconnected
	return m, append(effects,
		Effect{Kind: EffectTeardown},
		Effect{Kind: EffectStateChanged, State: m.State},
	)
}

// fail tears down the current attempt and lets the policy decide what follows.
func (m Machine) fail(cause error) (Machine, []Effect) {
	if cause == nil {
		cause = ErrConnectionLost
	}
	m.Gen++
	m.State = StateDisconnected
	effects := []Effect{
		{Kind: EffectTeardown},
		{Kind: EffectStateChanged, State: m.State},
	}

	switch {
	case !m.Live:
		return m, effects
	case terminal(cause) || !m.ConnectedOnce:
		m.Live = false
		return m, append(effects, Effect{Kind: EffectReportError, Err: cause})
	case m.Attempts >= m.Policy.MaxRetries:
		m.Live = false
		return m, append(effects, Effect{Kind: EffectReportError, Err: ErrRetriesExhausted})
	}

	m.Attempts++
	m.RetryPending = true
	return m, append(effects, Effect{
		Kind:  EffectScheduleRetry,
		Gen:   m.Gen,
		Delay: m.Policy.Delay(m.Attempts),
	})
}

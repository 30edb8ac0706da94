package realtime

import (
	"time"

	"shipnotify/internal/domain/notification"
)

// Events fed to the machine. Results of asynchronous work carry the epoch
// they were started in; anything from an older epoch is ignored.

type evConnect struct{ token string }

type evReconnect struct{}

type evDisconnect struct{}

type evDialed struct {
	epoch uint64
	conn  Conn
}

type evDialFailed struct {
	epoch uint64
	err   error
}

type evDropped struct {
	epoch uint64
	err   error
}

type evRetry struct{ timer uint64 }

type evSyncDone struct {
	epoch  uint64
	items  []*notification.Notification
	lastID notification.ID
	err    error
}

// Actions the machine asks the manager to perform, in order.

type actStatus struct{ status ConnectionStatus }

type actDial struct {
	epoch uint64
	token string
}

// actAttach adopts a freshly dialed channel; actDiscard closes a stale one.
type actAttach struct{ conn Conn }

type actDiscard struct{ conn Conn }

type actClose struct{}

type actArmTimer struct {
	id    uint64
	delay time.Duration
}

type actCancelTimer struct{}

type actHeartbeat struct{ on bool }

type actSync struct{ epoch uint64 }

type actMerge struct {
	items  []*notification.Notification
	lastID notification.ID
}

type actLogSyncErr struct{ err error }

// machine is the connection policy. It performs no I/O: apply returns the
// actions for the manager to execute.
type machine struct {
	policy   Policy
	status   ConnectionStatus
	token    string
	epoch    uint64
	attempts int
	timer    uint64 // pending retry timer id, 0 when none
	timerSeq uint64
	attached bool
}

func newMachine(p Policy) *machine {
	return &machine{policy: p.withDefaults(), status: StatusDisconnected}
}

func (m *machine) stats() Stats {
	return Stats{
		Status:      m.status,
		Attempts:    m.attempts,
		MaxAttempts: m.policy.MaxAttempts,
		Connected:   m.status.Online(),
		Epoch:       m.epoch,
	}
}

func (m *machine) apply(ev any) []any {
	switch ev := ev.(type) {
	case evConnect:
		if m.status.Online() {
			return nil
		}
		return m.start(ev.token)

	case evReconnect:
		if m.token == "" {
			return nil
		}
		return m.start(m.token)

	case evDisconnect:
		acts := m.teardown()
		m.epoch++
		m.attempts = 0
		return append(acts, m.setStatus(StatusDisconnected)...)

	case evDialed:
		if ev.epoch != m.epoch || m.status != StatusConnecting {
			return []any{actDiscard{conn: ev.conn}}
		}
		m.attached = true
		m.attempts = 0
		acts := []any{actAttach{conn: ev.conn}, actHeartbeat{on: true}}
		acts = append(acts, m.setStatus(StatusSyncing)...)
		return append(acts, actSync{epoch: m.epoch})

	case evDialFailed:
		if ev.epoch != m.epoch || m.status != StatusConnecting {
			return nil
		}
		acts := m.setStatus(StatusError)
		return append(acts, m.scheduleRetry()...)

	case evDropped:
		if ev.epoch != m.epoch || !m.attached {
			return nil
		}
		acts := m.teardown()
		m.epoch++
		acts = append(acts, m.setStatus(StatusDisconnected)...)
		if code, ok := closeCode(ev.err); ok && IsTerminalClose(code) {
			m.attempts = 0
			return acts
		}
		return append(acts, m.scheduleRetry()...)

	case evRetry:
		if ev.timer == 0 || ev.timer != m.timer {
			return nil
		}
		m.timer = 0
		m.epoch++
		acts := m.setStatus(StatusConnecting)
		return append(acts, actDial{epoch: m.epoch, token: m.token})

	case evSyncDone:
		if ev.epoch != m.epoch || m.status != StatusSyncing {
			return nil
		}
		var acts []any
		if ev.err != nil {
			acts = append(acts, actLogSyncErr{err: ev.err})
		} else {
			acts = append(acts, actMerge{items: ev.items, lastID: ev.lastID})
		}
		return append(acts, m.setStatus(StatusConnected)...)
	}
	return nil
}

// start begins a fresh connection from attempt zero.
func (m *machine) start(token string) []any {
	acts := m.teardown()
	m.token = token
	m.epoch++
	m.attempts = 0
	acts = append(acts, m.setStatus(StatusConnecting)...)
	return append(acts, actDial{epoch: m.epoch, token: token})
}

// teardown cancels the retry timer and releases the current channel.
func (m *machine) teardown() []any {
	var acts []any
	if m.timer != 0 {
		m.timer = 0
		acts = append(acts, actCancelTimer{})
	}
	if m.attached {
		m.attached = false
		acts = append(acts, actHeartbeat{on: false}, actClose{})
	}
	return acts
}

// scheduleRetry arms the retry timer, or gives up once the attempts are spent.
func (m *machine) scheduleRetry() []any {
	if m.attempts >= m.policy.MaxAttempts {
		return m.setStatus(StatusError)
	}
	delay := m.policy.Delay(m.attempts)
	m.attempts++
	m.timerSeq++
	m.timer = m.timerSeq
	return []any{actArmTimer{id: m.timer, delay: delay}}
}

func (m *machine) setStatus(s ConnectionStatus) []any {
	if m.status == s {
		return nil
	}
	m.status = s
	return []any{actStatus{status: s}}
}

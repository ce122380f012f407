package driver

import "time"

// Watchdog tracks link activity.
// A zero timeout disables the corresponding check.
type Watchdog struct {
	RxTimeout time.Duration
	TxTimeout time.Duration

	lastRx time.Time
	lastTx time.Time
}

// Reset restarts both timers, used when a connection is established.
func (w *Watchdog) Reset(now time.Time) {
	w.lastRx, w.lastTx = now, now
}

// Received records a valid frame.
func (w *Watchdog) Received(now time.Time) {
	w.lastRx = now
}

// Sent records a transmitted frame.
func (w *Watchdog) Sent(now time.Time) {
	w.lastTx = now
}

// LastRx returns the time of the last valid frame.
func (w *Watchdog) LastRx() time.Time {
	return w.lastRx
}

// LastTx returns the time of the last transmitted frame.
func (w *Watchdog) LastTx() time.Time {
	return w.lastTx
}

// RxExpired indicates the link has been silent longer than RxTimeout.
func (w *Watchdog) RxExpired(now time.Time) bool {
	return w.RxTimeout > 0 && now.Sub(w.lastRx) > w.RxTimeout
}

// TxIdle indicates nothing has been sent for longer than TxTimeout.
func (w *Watchdog) TxIdle(now time.Time) bool {
	return w.TxTimeout > 0 && now.Sub(w.lastTx) > w.TxTimeout
}

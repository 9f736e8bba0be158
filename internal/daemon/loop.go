package daemon

import "time"

// Run drives the scheduling loop until a shutdown completes: recompute,
// notify, then wait out the tick on the command multiplexer. A wait ends
// early when a command arrives or Wake is called, so external mutations take
// effect promptly. The display is restored before returning.
func (e *Engine) Run() error {
	e.logger.Info("Scheduling loop started")
	for {
		if done := e.step(e.now()); done {
			break
		}

		timeout := LongTick
		e.mu.Lock()
		if e.fader.Fading() || e.stopping {
			timeout = ShortTick
		}
		e.mu.Unlock()

		if e.mux != nil {
			if _, err := e.mux.Poll(timeout, e.dispatch); err != nil {
				e.logger.Error("Command poll failed", "error", err)
				time.Sleep(timeout)
			}
		} else {
			time.Sleep(timeout)
		}
	}

	e.logger.Info("Scheduling loop finished, restoring display")
	return e.sink.Restore()
}

package metrics

// Noop discards every measurement. Used in tests and tooling.
type Noop struct{}

func (Noop) RecordTick(string)                  {}
func (Noop) RecordTickDropped(string)           {}
func (Noop) RecordCandleClosed(string, string)  {}
func (Noop) RecordReconnect()                   {}
func (Noop) RecordHeartbeatRTT(float64)         {}
func (Noop) RecordSignalPending(string)         {}
func (Noop) RecordSignalResolved(string, bool)  {}
func (Noop) RecordError(string)                 {}

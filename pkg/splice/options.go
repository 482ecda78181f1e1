package splice

import "time"

type Option func(*engine)

// WithWaitTimeout bounds the readiness wait so that cancellation is
// observed between iterations.
func WithWaitTimeout(timeout time.Duration) Option {
	return func(e *engine) {
		e.waitTimeout = timeout
	}
}

// WithProvisioner runs external network configuration between device
// startup and the first loop iteration. A configuration failure is as
// fatal as an allocation failure.
func WithProvisioner(prov Provisioner) Option {
	return func(e *engine) {
		e.prov = prov
	}
}

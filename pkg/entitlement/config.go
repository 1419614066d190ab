package entitlement

import "time"

// Config holds engine tuning loaded from the environment.
type Config struct {
	// ListenerTimeout bounds each listener callback. Zero disables the bound.
	ListenerTimeout time.Duration `env:"ENTITLEMENT_LISTENER_TIMEOUT" envDefault:"5s"`
	// LockTimeout bounds the wait for a subscription's lock.
	LockTimeout time.Duration `env:"ENTITLEMENT_LOCK_TIMEOUT" envDefault:"30s"`
}

package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option adjusts a single Load call.
type Option func(*options)

type options struct {
	prefix   string
	envFiles []string
	noCache  bool
}

// WithPrefix prepends prefix to every env tag of the target struct.
// Results are cached per type and prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithEnvFiles loads the given files before parsing. Unlike the implicit
// .env load, a missing file here is an error. Existing variables win.
func WithEnvFiles(paths ...string) Option {
	return func(o *options) { o.envFiles = append(o.envFiles, paths...) }
}

// WithoutCache forces a fresh parse and leaves the cache untouched.
func WithoutCache() Option {
	return func(o *options) { o.noCache = true }
}

var (
	cacheMu sync.RWMutex
	cache   = map[string]any{}

	defaultEnvLoaded sync.Once
)

// Load fills v from environment variables using caarlos0/env struct tags.
// The first call loads ./.env if it exists. Each struct type is parsed once
// and served from cache afterwards, so component packages can call Load for
// their own Config without coordinating.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	defaultEnvLoaded.Do(func() {
		_ = godotenv.Load()
	})

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if len(o.envFiles) > 0 {
		if err := godotenv.Load(o.envFiles...); err != nil {
			return errors.Join(ErrEnvFile, err)
		}
	}

	key := cacheKey[T](o.prefix)

	if !o.noCache {
		cacheMu.RLock()
		cached, ok := cache[key]
		cacheMu.RUnlock()
		if ok {
			*v = cached.(T)
			return nil
		}
	}

	var parsed T
	if err := env.ParseWithOptions(&parsed, env.Options{Prefix: o.prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	if !o.noCache {
		cacheMu.Lock()
		// A concurrent loader may have won; keep its value so all callers agree.
		if cached, ok := cache[key]; ok {
			parsed = cached.(T)
		} else {
			cache[key] = parsed
		}
		cacheMu.Unlock()
	}

	*v = parsed
	return nil
}

// MustLoad works like Load but panics on failure. Use it for settings the
// process cannot start without.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Reset drops every cached configuration.
func Reset() {
	cacheMu.Lock()
	cache = map[string]any{}
	cacheMu.Unlock()
}

func cacheKey[T any](prefix string) string {
	t := reflect.TypeFor[T]()
	return t.PkgPath() + "." + t.String() + "|" + prefix
}

package session

import (
	"time"

	"github.com/imdario/mergo"
)

// Config configures a Session's behaviour. Zero-valued fields are
// filled from DefaultConfig by Resolve, mirroring the teacher's
// mergo-based "supplied config with defaults applied" pattern.
type Config struct {
	// SetupTimeout bounds how long New waits for the peer's hello.
	SetupTimeout time.Duration
	// DisableChunkedCodec prevents advertising base:1.1 and switching to
	// chunked framing even if the peer does.
	DisableChunkedCodec bool
	// SchemaSearchPath is used to construct an owned yangctx.Context when
	// the caller does not supply one to New.
	SchemaSearchPath []string
	// NotifPollInterval is the sleep between recv_notif(0) polls in the
	// background notification dispatcher.
	NotifPollInterval time.Duration
	// LockPollInterval is the sleep between get_msg queue-wait polls.
	LockPollInterval time.Duration
}

// DefaultConfig supplies every field Resolve will fill in for an
// incompletely specified Config.
var DefaultConfig = &Config{
	SetupTimeout:      5 * time.Second,
	NotifPollInterval: 20 * time.Millisecond,
	LockPollInterval:  2 * time.Millisecond,
}

// Resolve returns a copy of cfg with every zero-valued field filled
// from DefaultConfig, the same "supplied config, mergo-filled from
// defaults" shape the teacher's session factories use. A nil cfg
// resolves to a copy of DefaultConfig.
func Resolve(cfg *Config) *Config {
	resolved := &Config{}
	if cfg != nil {
		*resolved = *cfg
	}
	_ = mergo.Merge(resolved, DefaultConfig)
	return resolved
}

package match

import (
	"log/slog"

	"github.com/0x5487/limitbook/protocol"
)

// Option configures a MatchingEngine.
type Option func(*MatchingEngine)

// WithCommandBuffer sets the capacity of the command channel.
func WithCommandBuffer(size int) Option {
	return func(e *MatchingEngine) {
		if size > 0 {
			e.cmdBuffer = size
		}
	}
}

// WithPublishLog sets the sink that receives the book logs of every command.
func WithPublishLog(publishLog PublishLog) Option {
	return func(e *MatchingEngine) {
		if publishLog != nil {
			e.publishLog = publishLog
		}
	}
}

// WithLogger overrides the package logger for one engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *MatchingEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStrictInvariants walks every level and registry entry after each
// mutating command instead of running only the constant time checks.
func WithStrictInvariants(strict bool) Option {
	return func(e *MatchingEngine) {
		e.strictInvariants = strict
	}
}

// WithArenaCapacity sets the initial number of order slots per book side.
func WithArenaCapacity(capacity int32) Option {
	return func(e *MatchingEngine) {
		if capacity > 0 {
			e.arenaCapacity = capacity
		}
	}
}

// WithSerializer sets the codec used by EnqueueCommand to decode payloads.
func WithSerializer(s protocol.Serializer) Option {
	return func(e *MatchingEngine) {
		if s != nil {
			e.serializer = s
		}
	}
}

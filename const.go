package match

const (
	// EngineVersion is the current version of the matching engine
	EngineVersion = "v1.0.0"

	// SnapshotSchemaVersion is the current version of the snapshot schema
	// Increment this when the snapshot format changes in a backward-incompatible way
	SnapshotSchemaVersion = 1

	// DefaultCommandBuffer is the capacity of the engine command channel.
	DefaultCommandBuffer = 32768

	// DefaultArenaCapacity is the initial number of order slots per book side.
	DefaultArenaCapacity = 1024
)

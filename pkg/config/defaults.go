package config

// Key types understood by the tree commands.
const (
	KeyTypeInt    = "int"
	KeyTypeString = "string"
)

// Tree defaults.
const (
	DefaultKeyType = KeyTypeInt
	DefaultUnique  = false
)

// Storage defaults.
const (
	DefaultShards               = 4
	DefaultHibernationThreshold = 1000
	DefaultSnapshotDir          = "./ordtree-snapshot"
	DefaultManifestFormat       = "yaml"
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Telemetry defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultEnvironment  = "development"
	DefaultSampleRatio  = 1.0
)

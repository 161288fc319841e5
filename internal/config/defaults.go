package config

const (
	defaultLogDir         = "~/.local/share/loudscan/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultSnapshotStride = 10
)

func defaultExtensions() []string {
	return []string{"mp3", "wav", "flac"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Scan: Scan{
			Extensions: defaultExtensions(),
		},
		Measure: Measure{
			SnapshotStride: defaultSnapshotStride,
		},
		Journal: Journal{
			Path: defaultJournalPath(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

const (
	defaultPublicRoot          = "public"
	defaultInputDir            = "public/images/uploads"
	defaultOutputDir           = "public/images/optimized"
	defaultManifestPath        = "src/data/image-manifest.json"
	defaultVariantWidth        = 2400
	defaultWorkers             = 1
	defaultReferenceFormat     = "avif"
	defaultReferenceWidth      = 1200
	defaultColorFetchTimeout   = 15
	defaultColorFallbackHex    = "#3A4447"
	defaultHistoryEnabled      = true
	defaultWatchDebounceMS     = 2000
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultFormatEffort        = 4
	defaultJPEGQuality         = 85
	defaultWebPQuality         = 80
	defaultAVIFQuality         = 75
	defaultPNGQuality          = 100
	maxFormatEffort            = 9
	maxFormatQuality           = 100
	environmentLogLevelVarName = "PHOTON_LOG_LEVEL"
)

var defaultWidths = []int{400, 800, 1200, 2400}

// supportedFormats lists every encoding the variant generator can produce.
var supportedFormats = map[string]struct{}{
	"avif": {},
	"webp": {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

func defaultFormats() []Format {
	return []Format{
		{Name: "avif", Quality: defaultAVIFQuality, Effort: defaultFormatEffort},
		{Name: "webp", Quality: defaultWebPQuality, Effort: defaultFormatEffort},
		{Name: "jpg", Quality: defaultJPEGQuality},
	}
}

func defaultQualityFor(name string) int {
	switch name {
	case "avif":
		return defaultAVIFQuality
	case "webp":
		return defaultWebPQuality
	case "png":
		return defaultPNGQuality
	default:
		return defaultJPEGQuality
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	widths := make([]int, len(defaultWidths))
	copy(widths, defaultWidths)
	return Config{
		Paths: Paths{
			PublicRoot:   defaultPublicRoot,
			InputDir:     defaultInputDir,
			OutputDir:    defaultOutputDir,
			ManifestPath: defaultManifestPath,
			StateDir:     defaultStateDir(),
		},
		Variants: Variants{
			Widths:          widths,
			Formats:         defaultFormats(),
			DefaultWidth:    defaultVariantWidth,
			Workers:         defaultWorkers,
			ReferenceFormat: defaultReferenceFormat,
			ReferenceWidth:  defaultReferenceWidth,
		},
		Colors: Colors{
			FetchTimeoutSeconds: defaultColorFetchTimeout,
			FallbackHex:         defaultColorFallbackHex,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Watch: Watch{
			DebounceMS: defaultWatchDebounceMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

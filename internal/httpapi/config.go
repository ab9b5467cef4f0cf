package httpapi

// maxBodyBytes controls the maximum allowed request body size for image
// uploads. Default is 16 MiB, which comfortably fits a 4K RGBA PNG.
var maxBodyBytes int64 = 16 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 16 << 20
		return
	}
	maxBodyBytes = n
}

// processTimeout controls the maximum duration a /process request may run
// before timing out. Zero means no additional timeout beyond server/connection
// timeouts.
var processTimeout = int64(0) // seconds

// SetProcessTimeoutSeconds sets the process timeout in seconds (0 disables).
func SetProcessTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	processTimeout = sec
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

package constants

// Route paths shared by the router and URL builders.
const (
	PathHealth        = "/health"
	PathReady         = "/ready"
	PathMetrics       = "/metrics"
	PathWS            = "/ws"
	PathGenerateToken = "/generate-token"
	PathLives         = "/lives"
	PathPK            = "/pk"
)

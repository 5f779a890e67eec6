package constants

const (
	// Name is the server name used by the CLI and startup logs.
	Name = "evftp"

	// Version is the release version of EvFTP.
	Version = "0.1.0"
)

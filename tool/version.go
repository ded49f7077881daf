package tool

// Version is reported in the health endpoint and the outbound User-Agent.
var Version = "0.3.0"

// UserAgent is the User-Agent sent on every backend call.
func UserAgent() string {
	return "scangate/" + Version
}

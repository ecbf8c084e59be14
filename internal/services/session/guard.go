package session

const (
	PathRoot      = "/"
	PathLogin     = "/login"
	PathRegister  = "/register"
	PathTrack     = "/track"
	PathDashboard = "/dashboard"
)

var publicPaths = map[string]struct{}{
	PathRoot:     {},
	PathTrack:    {},
	PathRegister: {},
}

// Guard returns where path should redirect to, or "" to stay.
func Guard(path string, authenticated bool) string {
	if authenticated {
		if path == PathLogin || path == PathRegister {
			return PathDashboard
		}
		return ""
	}
	if _, ok := publicPaths[path]; ok {
		return ""
	}
	return PathRoot
}

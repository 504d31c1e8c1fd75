package standard

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/st-keller/introspection-agent/toolkit"
)

// Location categories reported by print_info, in reporting order.
const (
	LocationDesktop       toolkit.Location = "desktop"
	LocationDocuments     toolkit.Location = "documents"
	LocationFonts         toolkit.Location = "fonts"
	LocationApplications  toolkit.Location = "applications"
	LocationMusic         toolkit.Location = "music"
	LocationMovies        toolkit.Location = "movies"
	LocationPictures      toolkit.Location = "pictures"
	LocationTemp          toolkit.Location = "temp"
	LocationHome          toolkit.Location = "home"
	LocationAppLocalData  toolkit.Location = "app_local_data"
	LocationCache         toolkit.Location = "cache"
	LocationGenericData   toolkit.Location = "generic_data"
	LocationRuntime       toolkit.Location = "runtime"
	LocationConfig        toolkit.Location = "config"
	LocationDownload      toolkit.Location = "download"
	LocationGenericCache  toolkit.Location = "generic_cache"
	LocationGenericConfig toolkit.Location = "generic_config"
	LocationAppData       toolkit.Location = "app_data"
	LocationAppConfig     toolkit.Location = "app_config"
	LocationPublicShare   toolkit.Location = "public_share"
	LocationTemplates     toolkit.Location = "templates"
	LocationState         toolkit.Location = "state"
	LocationGenericState  toolkit.Location = "generic_state"
)

var locationOrder = []toolkit.Location{
	LocationDesktop, LocationDocuments, LocationFonts, LocationApplications,
	LocationMusic, LocationMovies, LocationPictures, LocationTemp, LocationHome,
	LocationAppLocalData, LocationCache, LocationGenericData, LocationRuntime,
	LocationConfig, LocationDownload, LocationGenericCache, LocationGenericConfig,
	LocationAppData, LocationAppConfig, LocationPublicShare, LocationTemplates,
	LocationState, LocationGenericState,
}

// XDGLocations resolves location categories with the XDG base directory and
// user directory specifications. App-scoped categories append the application
// name to the generic directories.
type XDGLocations struct {
	app string
}

var _ toolkit.LocationResolver = (*XDGLocations)(nil)

// NewXDGLocations creates a resolver for the given application name.
func NewXDGLocations(app string) *XDGLocations {
	xdg.Reload()
	return &XDGLocations{app: app}
}

// Categories implements toolkit.LocationResolver.
func (l *XDGLocations) Categories() []toolkit.Location {
	return append([]toolkit.Location(nil), locationOrder...)
}

// Candidates implements toolkit.LocationResolver. The first entry is the
// writable location when one exists.
func (l *XDGLocations) Candidates(loc toolkit.Location) []string {
	switch loc {
	case LocationDesktop:
		return []string{xdg.UserDirs.Desktop}
	case LocationDocuments:
		return []string{xdg.UserDirs.Documents}
	case LocationFonts:
		return append([]string(nil), xdg.FontDirs...)
	case LocationApplications:
		return append([]string(nil), xdg.ApplicationDirs...)
	case LocationMusic:
		return []string{xdg.UserDirs.Music}
	case LocationMovies:
		return []string{xdg.UserDirs.Videos}
	case LocationPictures:
		return []string{xdg.UserDirs.Pictures}
	case LocationTemp:
		return []string{os.TempDir()}
	case LocationHome:
		return []string{xdg.Home}
	case LocationAppLocalData, LocationAppData:
		return l.scoped(append([]string{xdg.DataHome}, xdg.DataDirs...))
	case LocationCache:
		return l.scoped([]string{xdg.CacheHome})
	case LocationGenericData:
		return append([]string{xdg.DataHome}, xdg.DataDirs...)
	case LocationRuntime:
		return []string{xdg.RuntimeDir}
	case LocationConfig, LocationGenericConfig:
		return append([]string{xdg.ConfigHome}, xdg.ConfigDirs...)
	case LocationDownload:
		return []string{xdg.UserDirs.Download}
	case LocationGenericCache:
		return []string{xdg.CacheHome}
	case LocationAppConfig:
		return l.scoped(append([]string{xdg.ConfigHome}, xdg.ConfigDirs...))
	case LocationPublicShare:
		return []string{xdg.UserDirs.PublicShare}
	case LocationTemplates:
		return []string{xdg.UserDirs.Templates}
	case LocationState:
		return l.scoped([]string{xdg.StateHome})
	case LocationGenericState:
		return []string{xdg.StateHome}
	default:
		return nil
	}
}

// Writable implements toolkit.LocationResolver.
func (l *XDGLocations) Writable(loc toolkit.Location) string {
	switch loc {
	case LocationFonts:
		return filepath.Join(xdg.DataHome, "fonts")
	case LocationApplications:
		return filepath.Join(xdg.DataHome, "applications")
	}
	if candidates := l.Candidates(loc); len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

func (l *XDGLocations) scoped(dirs []string) []string {
	if l.app == "" {
		return dirs
	}
	out := make([]string, len(dirs))
	for i, dir := range dirs {
		out[i] = filepath.Join(dir, l.app)
	}
	return out
}

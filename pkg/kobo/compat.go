package kobo

import (
	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/models"
)

// Compatible reports whether a file of the given format and size can be
// offered to a Kobo device. EPUB always qualifies. CBZ qualifies only when
// the user has opted in and the file is under the configured size limit.
// Everything else (audiobooks, supplements) never syncs.
func Compatible(format string, sizeBytes int64, settings *config.UserConfig) bool {
	switch format {
	case models.FormatEPUB:
		return true
	case models.FormatCBZ:
		if settings == nil || !settings.KoboSyncCBZEnabled {
			return false
		}
		if settings.KoboSyncCBZSizeLimitMB <= 0 {
			return false
		}
		return sizeBytes <= int64(settings.KoboSyncCBZSizeLimitMB)*1024*1024
	default:
		return false
	}
}

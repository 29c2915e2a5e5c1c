package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/hollowscene/spindl/internal/models"
)

var _ list.Item = trackItem{}

// trackItem wraps [models.PersistedTrack] to implement [list.Item].
type trackItem struct {
	track *models.PersistedTrack
}

func (i trackItem) FilterValue() string { return i.track.Title() }
func (i trackItem) Title() string       { return i.track.Title() }
func (i trackItem) Description() string {
	desc := strings.Join(i.track.Artists(), ", ")
	if i.track.Album() != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album())
	}
	return desc
}

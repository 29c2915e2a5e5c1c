// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for playlist downloads:
//  1. [TrackListView] : Preview a playlist's downloadable tracks
//  2. [ConfirmView] : Confirm the download
//  3. [DownloadView] : Monitor real-time progress updates
//  4. [ResultView] : Display success counts and failed tracks
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via tea.Msg.
// Progress updates flow through a channel from the DownloadEngine, providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui

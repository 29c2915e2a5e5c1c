// package models defines the data model for the playlist download service.
//
// Two kinds of types live here: DTO structs that mirror the shape of
// upstream API responses (Playlist, Track), and persisted models that
// wrap a DTO with database identity and lifecycle state
// (PersistedPlaylist, PersistedTrack, DownloadSession).
package models

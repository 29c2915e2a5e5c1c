// package tasks implements playlist download operations.
//
// The core abstraction is DownloadEngine, which reconciles Spotify
// playlists into local snapshots and drives download sessions track by
// track. Operations emit progress updates via channels for non-blocking
// status reporting to CLI/UI layers.
package tasks

// package services wraps the upstream music APIs.
//
// Catalog covers playlist and track metadata (Spotify), AudioFetcher
// covers locating and downloading audio (YouTube search plus yt-dlp).
package services

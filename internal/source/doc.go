// Package source abstracts the places disk images are gathered from.
//
// A Source lists one directory at a time; the scanner package drives the
// recursive traversal. Two adapters are provided: Local walks the client's
// filesystem below a granted root, and FTP browses the device's own storage.
// Both report failures as *ListingError so a scan can surface which source,
// which path and which platform failed without inspecting adapter types.
package source

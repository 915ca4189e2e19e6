// Package diskentry defines the canonical catalog record for one disk image
// and the pure helpers that every other package uses to agree on identity.
//
// Paths are normalized to absolute, forward-slash form before an identifier is
// derived, so the same image reached through different spellings maps to the
// same entry. The extension vocabulary recognized here is the single admission
// filter for cataloging; scanners, quick-add and the REST client all defer to
// IsDiskImagePath and ImageType rather than checking suffixes themselves.
package diskentry

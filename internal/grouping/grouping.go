// Package grouping tags freshly scanned disks with rotation groups so the
// disks of one multi-disk title can be cycled through a drive as a set.
package grouping

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/source"
)

// Candidate is a scanned disk image annotated with its rotation metadata.
type Candidate struct {
	Entry       source.Entry
	Group       *string
	ImportOrder int
}

var (
	// Numeric or lettered index, optionally introduced by a keyword and
	// followed by "of N": "Zak1", "Zak_disk2", "game (Disk 1 of 3)", "Ultima-side-b".
	indexPattern = regexp.MustCompile(`(?i)([\s_\-.()\[\]]*)(disk|disc|side|part|volume|vol|d|s)?([\s_\-.]*)(\d+|[a-h])(\s*of\s*\d+)?[\s)\]]*$`)

	trimCutset = " _-.([{"
)

// SplitIndex separates a stem into its title prefix and trailing disk index.
// ok is false when the stem carries no recognizable index.
func SplitIndex(stem string) (prefix, index string, ok bool) {
	m := indexPattern.FindStringSubmatchIndex(stem)
	if m == nil {
		return "", "", false
	}
	lead := stem[m[2]:m[3]]
	index = stem[m[8]:m[9]]
	cut := m[0]
	keyword := m[4] >= 0
	if keyword && lead == "" && m[4] > 0 {
		// A keyword glued to the title ("Wizard1") belongs to the title.
		keyword = false
		cut = m[6]
	}
	if isLetter(index) && !keyword && stem[cut:m[8]] == "" {
		// A bare trailing letter is part of the word ("Zaka").
		return "", "", false
	}

	prefix = strings.TrimRight(stem[:cut], trimCutset)
	if prefix == "" {
		return "", "", false
	}
	return prefix, strings.ToLower(index), true
}

// Assign groups candidates that are already sorted by path. ImportOrder is
// the position within the batch.
func Assign(entries []source.Entry) []Candidate {
	out := make([]Candidate, len(entries))
	for i, e := range entries {
		out[i] = Candidate{Entry: e, ImportOrder: i}
	}

	type cluster struct {
		key     string
		members []int
	}
	folders := make(map[string][]int)
	var folderOrder []string
	for i, e := range entries {
		dir := diskentry.ParentDir(e.Path)
		if _, ok := folders[dir]; !ok {
			folderOrder = append(folderOrder, dir)
		}
		folders[dir] = append(folders[dir], i)
	}

	fold := cases.Fold()
	for _, dir := range folderOrder {
		members := folders[dir]
		clusters := make(map[string]*cluster)
		var keys []string
		for _, i := range members {
			prefix, _, ok := SplitIndex(diskentry.Stem(entries[i].Path))
			if !ok {
				continue
			}
			folded := fold.String(prefix)
			c, exists := clusters[folded]
			if !exists {
				c = &cluster{key: prefix}
				clusters[folded] = c
				keys = append(keys, folded)
			}
			c.members = append(c.members, i)
		}

		claimed := make(map[int]bool)
		for _, k := range keys {
			c := clusters[k]
			if len(c.members) < 2 {
				continue
			}
			for _, i := range c.members {
				out[i].Group = diskentry.StringPtr(c.key)
				claimed[i] = true
			}
		}

		var unclaimed []int
		for _, i := range members {
			if !claimed[i] {
				unclaimed = append(unclaimed, i)
			}
		}
		folderName := diskentry.BaseName(dir)
		if len(unclaimed) < 2 || folderName == "" {
			continue
		}
		for _, i := range unclaimed {
			out[i].Group = diskentry.StringPtr(folderName)
		}
	}
	return out
}

// Entries converts candidates into catalog entries at loc.
func Entries(loc diskentry.Location, candidates []Candidate) []diskentry.Entry {
	out := make([]diskentry.Entry, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, diskentry.New(diskentry.Fields{
			Path:         c.Entry.Path,
			Location:     loc,
			Group:        c.Group,
			ImportOrder:  diskentry.IntPtr(c.ImportOrder),
			SizeBytes:    c.Entry.SizeBytes,
			ModifiedAt:   c.Entry.ModifiedAt,
			LocalURI:     c.Entry.LocalURI,
			LocalTreeURI: c.Entry.LocalTreeURI,
		}))
	}
	return out
}

// Groups returns the distinct group keys in first-seen order.
func Groups(candidates []Candidate) []string {
	var keys []string
	for _, c := range candidates {
		if c.Group != nil && !slices.Contains(keys, *c.Group) {
			keys = append(keys, *c.Group)
		}
	}
	return keys
}

func isLetter(s string) bool {
	return len(s) == 1 && ((s[0] >= 'a' && s[0] <= 'h') || (s[0] >= 'A' && s[0] <= 'H'))
}

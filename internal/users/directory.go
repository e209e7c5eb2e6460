// Package users holds the known-user directory: the fixed mapping from login
// identifier to the phone number verification codes are sent to.
package users

import (
	"maps"
	"slices"
)

// Directory is read-only after New and safe for concurrent use.
type Directory struct {
	phones map[string]string
}

// New copies entries; later changes to the map are not observed.
func New(entries map[string]string) *Directory {
	return &Directory{phones: maps.Clone(entries)}
}

// Lookup matches identifier exactly, without trimming or case folding.
func (d *Directory) Lookup(identifier string) (phone string, ok bool) {
	if d == nil {
		return "", false
	}
	phone, ok = d.phones[identifier]
	return phone, ok
}

func (d *Directory) Empty() bool { return d.Len() == 0 }

func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.phones)
}

// Identifiers returns the known identifiers in sorted order.
func (d *Directory) Identifiers() []string {
	if d == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(d.phones))
}

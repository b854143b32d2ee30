// Package storage persists named blobs: base64 templates, captured frames and
// encoder debug stages. Callers receive a Store instead of writing to fixed
// folders.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotFound    = errors.New("no such entry")
	ErrInvalidName = errors.New("invalid entry name")
)

// Store persists bytes under a flat name.
type Store interface {
	Put(name string, data []byte) error
	Get(name string) ([]byte, error)
	// List returns names in lexical order.
	List() ([]string, error)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}

// TemplateName is the at-rest file name of a registered template.
func TemplateName(hand, voterCode string) string {
	return hand + "_" + voterCode + ".b64"
}

// CaptureName is the file name of a captured frame.
func CaptureName(hand, voterCode string) string {
	return hand + "_" + voterCode + ".png"
}

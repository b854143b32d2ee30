package storage

import (
	log "github.com/sirupsen/logrus"
)

// StageWriter saves encoder stages as "<prefix>_<stage>.pgm". It satisfies
// palmscan.TransparencyConsumer.
type StageWriter struct {
	Store  Store
	Prefix string
	// Stages limits which stages are kept; empty keeps all.
	Stages []string
}

func (w *StageWriter) Accepts(key string) bool {
	if len(w.Stages) == 0 {
		return true
	}
	for _, s := range w.Stages {
		if s == key {
			return true
		}
	}
	return false
}

func (w *StageWriter) Accept(key, mime string, data []byte) error {
	name := w.Prefix + "_" + key + ".pgm"
	log.WithFields(log.Fields{"name": name, "mime": mime, "bytes": len(data)}).Debug("Saving encoder stage")
	return w.Store.Put(name, data)
}

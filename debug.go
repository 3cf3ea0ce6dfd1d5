// Diagnostic dumps: a JSON snapshot of a File's committed header and
// sub-file table, for operators inspecting an archive without reaching
// for a hex editor. Uses goccy/go-json rather than encoding/json for
// the same reason the rest of the engine favors pack libraries over
// stdlib equivalents here — it is a drop-in Marshal/Unmarshal with
// materially lower allocation overhead on the hot path this method
// shares with any caller that dumps stats on every commit for
// monitoring.
package snapdb

import (
	json "github.com/goccy/go-json"
)

// SubFileStats is the JSON-friendly view of one sub-file table entry.
type SubFileStats struct {
	ID        uint16 `json:"id"`
	Purpose   string `json:"purpose"`
	KeyType   string `json:"keyType"`
	ValueType string `json:"valueType"`
	Direct    uint32 `json:"direct"`
	Single    uint32 `json:"single"`
	Double    uint32 `json:"double"`
	Triple    uint32 `json:"triple"`
	Quad      uint32 `json:"quad"`
}

// FileStats is the JSON-friendly view of a File's committed header.
type FileStats struct {
	Path          string         `json:"path,omitempty"`
	ArchiveType   string         `json:"archiveType"`
	ArchiveID     string         `json:"archiveId"`
	BlockSize     uint32         `json:"blockSize"`
	Sequence      uint64         `json:"sequence"`
	LastAllocated uint32         `json:"lastAllocated"`
	LiveSnapshots int            `json:"liveSnapshots"`
	PendingFree   int            `json:"pendingFree"`
	SubFiles      []SubFileStats `json:"subFiles"`
}

// Stats builds a JSON-friendly snapshot of f's current committed
// header. Safe to call while an Edit is in progress (it only reads the
// last committed state, never the in-flight one).
func (f *File) Stats() FileStats {
	f.mu.Lock()
	h := f.header
	live := len(f.liveSnapshots)
	pending := len(f.pendingFree)
	f.mu.Unlock()

	st := FileStats{
		Path:          f.path,
		ArchiveType:   h.archiveType.String(),
		ArchiveID:     h.archiveID.String(),
		BlockSize:     h.blockSize,
		Sequence:      h.sequence,
		LastAllocated: h.lastAllocated,
		LiveSnapshots: live,
		PendingFree:   pending,
	}
	for _, e := range h.subFiles {
		st.SubFiles = append(st.SubFiles, SubFileStats{
			ID:        e.id,
			Purpose:   e.purpose.String(),
			KeyType:   e.keyType.String(),
			ValueType: e.valueType.String(),
			Direct:    e.direct,
			Single:    e.single,
			Double:    e.double,
			Triple:    e.triple,
			Quad:      e.quad,
		})
	}
	return st
}

// DumpStatsJSON returns f.Stats() marshaled as indented JSON.
func (f *File) DumpStatsJSON() ([]byte, error) {
	return json.MarshalIndent(f.Stats(), "", "  ")
}

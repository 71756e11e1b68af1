package models

// ScanRecordSchemaVersion identifies the current shape of ScanRecord rows.
// Bump it when fields change so stored JSON remains migratable.
const ScanRecordSchemaVersion = 1

// ScanRecord is the persisted diagnostic outcome of a content scan. It is
// stored as JSONB with an explicit schema version rather than a loosely
// typed blob.
type ScanRecord struct {
	SchemaVersion int    `json:"schemaVersion"`
	IsClean       bool   `json:"isClean"`
	Threat        string `json:"threat,omitempty"`
	Error         string `json:"error,omitempty"`
	FileType      string `json:"fileType,omitempty"`
	Signature     string `json:"signature,omitempty"`
	// ScanDurationMS is the deep-scan wall time in milliseconds. Zero when
	// only the heuristic stage ran.
	ScanDurationMS int64 `json:"scanDurationMs"`
}

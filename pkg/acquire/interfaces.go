package acquire

import (
	"canvasfetch/pkg/models"
	"canvasfetch/pkg/offline"
	"canvasfetch/pkg/orientation"
)

// Ledger is the dedup record consulted and updated by a session
type Ledger interface {
	IsSeen(source, id string) bool
	Record(source, id string, outcome models.Outcome) (bool, error)
}

// ImageStore persists accepted images under deterministic names
type ImageStore interface {
	Save(name string, data []byte) (path string, existed bool, err error)
}

// Catalog receives descriptive metadata for accepted images
type Catalog interface {
	Add(item models.CatalogItem) error
}

// OfflineCycler is the last-resort source of a local image
type OfflineCycler interface {
	Select(o orientation.Orientation) (*offline.Selection, error)
}

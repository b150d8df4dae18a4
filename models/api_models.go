// models/api_models.go
package models

// SyncRequest selects one dataset to bring up to date. Over HTTP, Model and
// Category come from the path of POST /api/sync/{model}/{category} and the
// rest from the JSON body. Zero values fall back to the model's defaults.
type SyncRequest struct {
	Model     string `json:"model"`
	Category  string `json:"category"`
	Step      int    `json:"step"`      // e.g., 3 or 6
	Directory string `json:"directory"` // e.g., "atmos", "wave"
	Horizon   int    `json:"horizon"`   // last forecast hour wanted; 0 means the model maximum
	Force     bool   `json:"force"`     // skip the freshness check
}

// SyncResponse reports what a sync did.
type SyncResponse struct {
	Key        DatasetKey       `json:"key"`
	Decision   DownloadDecision `json:"decision"`
	Downloaded int              `json:"downloaded"`
	Bytes      int64            `json:"bytes"`
}

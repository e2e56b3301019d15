package audit

import (
	"encoding/json"
	"time"
)

// Action classifies an audited operation.
type Action string

const (
	ActionLogin        Action = "LOGIN"
	ActionLogout       Action = "LOGOUT"
	ActionRegister     Action = "REGISTER"
	ActionCreate       Action = "CREATE"
	ActionUpdate       Action = "UPDATE"
	ActionDelete       Action = "DELETE"
	ActionUploadFile   Action = "UPLOAD_FILE"
	ActionDownloadFile Action = "DOWNLOAD_FILE"
	ActionExportData   Action = "EXPORT_DATA"
)

// Entry is one append-only audit row. Entries are written exactly once per
// qualifying response and never for requests that failed to resolve a
// principal; partial or anonymous rows would make the log untrustworthy.
type Entry struct {
	ID             string
	UserID         string
	OrganizationID string
	Action         Action
	ResourceType   string
	ResourceID     string // empty means null
	Details        json.RawMessage
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
}

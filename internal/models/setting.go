package models

import "time"

// SettingMaxFileSize is the settings key holding the per-file upload limit in bytes.
const SettingMaxFileSize = "MAX_FILE_SIZE"

// Setting is a runtime-tunable key/value pair.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedBy *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

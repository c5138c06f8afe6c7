package models

// Attachment is the metadata of an uploaded report file.
type Attachment struct {
	ID          string      `db:"id" json:"id"`
	OwnerKind   AccountKind `db:"owner_kind" json:"owner_kind"`
	OwnerID     string      `db:"owner_id" json:"owner_id"`
	FileName    string      `db:"file_name" json:"file_name"`
	MIMEType    string      `db:"mime_type" json:"mime_type"`
	SizeBytes   int64       `db:"size_bytes" json:"size_bytes"`
	StoragePath string      `db:"storage_path" json:"-"`
	Audit
}

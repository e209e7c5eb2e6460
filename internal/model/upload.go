package model

import "time"

// Upload is one file accepted by the upload step.
type Upload struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	FileName  string    `json:"file_name"`
	Size      int64     `json:"size"`
	Location  string    `json:"location"`
	RemoteIP  string    `json:"remote_ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

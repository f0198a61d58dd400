package domain

import "time"

// Band: one catalog entity (an HBCU marching band) whose videos we ingest.
type Band struct {
	ID        int64   `json:"id"`
	Slug      string  `json:"slug"`
	Name      string  `json:"name"`
	School    string  `json:"school,omitempty"`
	State     string  `json:"state,omitempty"`
	ChannelID *string `json:"channel_id,omitempty"` // stable YouTube channel id, if known
	Featured  bool    `json:"featured"`
	Active    bool    `json:"active"`

	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	FirstSyncedAt  *time.Time `json:"first_synced_at,omitempty"`
	LastFullSyncAt *time.Time `json:"last_full_sync_at,omitempty"`
}

// HasChannel reports whether the band has a stable channel id, which enables the
// cheap channel-enumeration fetch strategy instead of keyword search.
func (b *Band) HasChannel() bool {
	return b != nil && b.ChannelID != nil && *b.ChannelID != ""
}

// NeverSynced reports whether the band has never completed a sync run.
func (b *Band) NeverSynced() bool {
	return b != nil && b.FirstSyncedAt == nil
}

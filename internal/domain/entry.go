package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// RawEntry is one record as returned by a crawler, before it becomes an Item.
// Empty strings mean the source did not carry the field.
type RawEntry struct {
	SourceType  SourceType
	SourceName  string
	Query       string
	Location    string
	Link        string
	GUID        string
	Title       string
	Published   string
	PublishedAt *time.Time
	Author      string
	Summary     string
	SourceTitle string
	Payload     json.RawMessage
}

// CanonicalURL is the dedup key: the native link, or a GUID that is itself a URL.
func (e RawEntry) CanonicalURL() string {
	if link := strings.TrimSpace(e.Link); link != "" {
		return link
	}
	if guid := strings.TrimSpace(e.GUID); strings.HasPrefix(guid, "http") {
		return guid
	}
	return ""
}

// NewsSource prefers the configured feed name over the publisher sub-field.
func (e RawEntry) NewsSource() string {
	if e.SourceName != "" {
		return e.SourceName
	}
	return e.SourceTitle
}

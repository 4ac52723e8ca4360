package store

import (
	"strconv"
	"time"
)

// TaskRecord is one row of the cache: the normalized projection of a remote
// task page. UID is the stable primary key; NID is the human-facing numeric
// identifier and may be absent.
type TaskRecord struct {
	UID           string
	NID           *int64
	Name          string
	BodyContent   string
	Status        string
	Started       string
	Completed     string
	Due           string
	UpdatedTime   string
	Priority      string
	FilesAndMedia []string
	Created       string
	ParentUID     string
	ParentNID     *int64
	ChildrenUIDs  []string
	ChildrenNIDs  []*int64
	Tags          []string
	ParentTags    []string
	Comments      string
}

// DirName names the record's attachment directory: the NID when present,
// otherwise the UID.
func (r TaskRecord) DirName() string {
	if r.NID != nil {
		return strconv.FormatInt(*r.NID, 10)
	}
	return r.UID
}

// UpdatedAt parses the change-detection stamp; the zero time when absent or
// malformed.
func (r TaskRecord) UpdatedAt() time.Time {
	return parseStamp(r.UpdatedTime)
}

// CompletedAt parses the completion date, falling back to the last-modified
// stamp for records already marked done without an explicit date.
func (r TaskRecord) CompletedAt() time.Time {
	if stamp := parseStamp(r.Completed); !stamp.IsZero() {
		return stamp
	}
	return time.Time{}
}

// DueAt parses the due date; the zero time when absent.
func (r TaskRecord) DueAt() time.Time {
	return parseStamp(r.Due)
}

// CreatedAt parses the creation stamp; the zero time when absent.
func (r TaskRecord) CreatedAt() time.Time {
	return parseStamp(r.Created)
}

// parseStamp accepts the RFC 3339 stamps of system fields as well as the
// bare dates of user-editable date properties.
func parseStamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-07:00", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

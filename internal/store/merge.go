package store

// Merge concatenates fresh records onto the existing cache and deduplicates
// by UID, keeping the last occurrence. Relative order of first appearance is
// preserved so re-runs with no changes rewrite the file byte-identically.
func Merge(existing, fresh []TaskRecord) []TaskRecord {
	combined := make([]TaskRecord, 0, len(existing)+len(fresh))
	combined = append(combined, existing...)
	combined = append(combined, fresh...)

	position := make(map[string]int, len(combined))
	merged := make([]TaskRecord, 0, len(combined))
	for _, record := range combined {
		if i, seen := position[record.UID]; seen {
			merged[i] = record
			continue
		}
		position[record.UID] = len(merged)
		merged = append(merged, record)
	}
	return merged
}

// ByUID indexes records by their primary key.
func ByUID(records []TaskRecord) map[string]TaskRecord {
	index := make(map[string]TaskRecord, len(records))
	for _, record := range records {
		index[record.UID] = record
	}
	return index
}

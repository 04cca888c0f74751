package store

import (
	"slices"

	"github.com/stevemurr/stub-server/record"
)

// NextID returns one more than the largest integer id in records, or 1 when
// no record has an integer id. Deleted ids are therefore only reused once
// every higher id is gone.
func NextID(records []record.Record) int64 {
	var highest int64
	found := false
	for _, r := range records {
		id, ok := r.ID()
		if !ok {
			continue
		}
		if !found || id > highest {
			highest = id
			found = true
		}
	}
	if !found {
		return 1
	}
	return highest + 1
}

// IndexOf returns the position of the first record with id, or -1.
func IndexOf(records []record.Record, id int64) int {
	return slices.IndexFunc(records, func(r record.Record) bool {
		got, ok := r.ID()
		return ok && got == id
	})
}

// Create assigns body the next id, overwriting any id it carried, and appends
// it. It returns the grown slice and the stored record.
func Create(records []record.Record, body record.Record) ([]record.Record, record.Record) {
	body.SetID(NextID(records))
	return append(records, body), body
}

// Update replaces the first record with id by body, keeping its position.
// body's id is forced to id. ErrNotFound is returned when no record matches.
func Update(records []record.Record, id int64, body record.Record) (record.Record, error) {
	body.SetID(id)
	i := IndexOf(records, id)
	if i < 0 {
		return record.Record{}, ErrNotFound
	}
	records[i] = body
	return body, nil
}

// Delete removes every record with id and reports how many were removed.
func Delete(records []record.Record, id int64) ([]record.Record, int) {
	n := len(records)
	records = slices.DeleteFunc(records, func(r record.Record) bool {
		got, ok := r.ID()
		return ok && got == id
	})
	return records, n - len(records)
}

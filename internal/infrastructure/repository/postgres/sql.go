package postgres

import "database/sql"

// insertBatchSize caps multi-row inserts so placeholder counts stay well
// under the Postgres protocol limit.
const insertBatchSize = 500

func isNotFound(err error) bool {
	return err == sql.ErrNoRows
}

func int64SliceToAny(items []int64) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}

func batchRanges(total int) [][2]int {
	var out [][2]int
	for from := 0; from < total; from += insertBatchSize {
		to := from + insertBatchSize
		if to > total {
			to = total
		}
		out = append(out, [2]int{from, to})
	}
	return out
}

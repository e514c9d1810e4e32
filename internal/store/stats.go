package store

import "fmt"

// Stats summarizes the graph: entity counts per kind, edge counts per
// relation type, and counts per lifecycle status.
type Stats struct {
	Entities  map[string]int `json:"entities"`
	Relations map[string]int `json:"relations"`
	Statuses  map[string]int `json:"statuses"`
}

// Stats computes counts across the whole store.
func (db *DB) Stats() (*Stats, error) {
	s := &Stats{
		Entities:  make(map[string]int),
		Relations: make(map[string]int),
		Statuses:  make(map[string]int),
	}

	rows, err := db.Query("SELECT kind, COUNT(*) FROM entities GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan entity count: %w", err)
		}
		s.Entities[kind] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.Query("SELECT rel_type, COUNT(*) FROM relations GROUP BY rel_type")
	if err != nil {
		return nil, fmt.Errorf("count relations: %w", err)
	}
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan relation count: %w", err)
		}
		s.Relations[t] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	type statusQuery struct {
		prefix string
		query  string
	}
	queries := []statusQuery{
		{"decision", "SELECT status, COUNT(*) FROM decisions GROUP BY status"},
		{"question", "SELECT status, COUNT(*) FROM questions GROUP BY status"},
		{"fragment", "SELECT CASE WHEN superseded_by IS NULL THEN 'current' ELSE 'superseded' END, COUNT(*) FROM fragments GROUP BY 1"},
	}
	for _, sq := range queries {
		rows, err = db.Query(sq.query)
		if err != nil {
			return nil, fmt.Errorf("count %s statuses: %w", sq.prefix, err)
		}
		for rows.Next() {
			var status string
			var n int
			if err := rows.Scan(&status, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan status count: %w", err)
			}
			s.Statuses[sq.prefix+":"+status] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

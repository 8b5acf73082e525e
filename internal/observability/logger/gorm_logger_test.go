package logger

import "testing"

func TestDescribeSQL(t *testing.T) {
	tests := []struct {
		sql   string
		op    string
		table string
	}{
		{`SELECT * FROM "receipts" WHERE fee_record_id = $1`, "SELECT", "receipts"},
		{"INSERT INTO `outbox_messages` (`id`) VALUES (?)", "INSERT", "outbox_messages"},
		{`UPDATE receipts SET status = 'Paid' WHERE id = ?`, "UPDATE", "receipts"},
		{``, "UNKNOWN", ""},
	}
	for _, tt := range tests {
		op, table := describeSQL(tt.sql)
		if op != tt.op || table != tt.table {
			t.Fatalf("describeSQL(%q) = (%s, %s), want (%s, %s)", tt.sql, op, table, tt.op, tt.table)
		}
	}
}

package storage

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestColumnName(t *testing.T) {
	cases := map[string]string{
		"INFY":       "infy",
		"BAJAJ-AUTO": "bajaj_auto",
		"M&M":        "m_m",
		"500112":     "t_500112",
		"TCS ":       "tcs",
		"":           "t_unknown",
	}
	for ticker, want := range cases {
		if got := columnName(ticker); got != want {
			t.Fatalf("columnName(%q) = %q, want %q", ticker, got, want)
		}
	}
}

func TestCreateTableSQLIsIdempotent(t *testing.T) {
	sql := createTableSQL()
	if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS") {
		t.Fatalf("schema creation must be guarded: %s", sql)
	}
	if !strings.Contains(addColumnSQL("infy"), "ADD COLUMN IF NOT EXISTS infy NUMERIC") {
		t.Fatal("column creation must be guarded")
	}
}

func TestInsertRowSQL(t *testing.T) {
	sql := insertRowSQL([]string{"infy", "tcs"})
	want := "INSERT INTO quote_rows (captured_at, infy, tcs) VALUES ($1, $2, $3);"
	if sql != want {
		t.Fatalf("insertRowSQL = %q, want %q", sql, want)
	}
}

func TestSelectRowsSQL(t *testing.T) {
	asc := selectRowsSQL([]string{"infy"}, false)
	if !strings.HasSuffix(asc, "ORDER BY captured_at;") {
		t.Fatalf("full read must order ascending: %s", asc)
	}
	recent := selectRowsSQL([]string{"infy"}, true)
	if !strings.HasSuffix(recent, "ORDER BY captured_at DESC LIMIT $1;") {
		t.Fatalf("recent read must order descending with a limit: %s", recent)
	}
}

func TestRowPrice(t *testing.T) {
	v := decimal.NewFromInt(42)
	row := Row{Prices: map[string]*decimal.Decimal{
		"INFY": &v,
		"TCS":  nil,
	}}

	if price, ok := row.Price("INFY"); !ok || !price.Equal(v) {
		t.Fatalf("Price(INFY) = %v, %v", price, ok)
	}
	if _, ok := row.Price("TCS"); ok {
		t.Fatal("nil entry must read as absent")
	}
	if _, ok := row.Price("SBIN"); ok {
		t.Fatal("missing entry must read as absent")
	}
}

func TestReverseRows(t *testing.T) {
	rows := []Row{
		{Prices: map[string]*decimal.Decimal{"a": nil}},
		{Prices: map[string]*decimal.Decimal{"b": nil}},
		{Prices: map[string]*decimal.Decimal{"c": nil}},
	}
	reverseRows(rows)
	if _, ok := rows[0].Prices["c"]; !ok {
		t.Fatal("rows were not reversed")
	}
}

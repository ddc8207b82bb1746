package engine

import (
	"math"
	"strconv"
	"testing"
	"time"
)

func TestStateIsTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateQueued, false},
		{StateRunning, false},
		{StateSucceeded, true},
		{StateFailed, true},
		{StateCancelled, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLiteral(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 1, 999, time.FixedZone("x", 3600))
	tests := []struct {
		name    string
		in      any
		want    string
		wantErr bool
	}{
		{name: "nil", in: nil, want: "NULL"},
		{name: "string", in: "pass", want: "'pass'"},
		{name: "quote", in: "o'brien", want: "'o''brien'"},
		{name: "int", in: 3, want: "3"},
		{name: "int64", in: int64(-7), want: "-7"},
		{name: "float", in: 0.25, want: "0.25"},
		{name: "bool", in: true, want: "TRUE"},
		{name: "time", in: ts, want: "TIMESTAMP '2024-03-09 06:05:01'"},
		{name: "nul byte", in: "a\x00b", wantErr: true},
		{name: "nan", in: math.NaN(), wantErr: true},
		{name: "unsupported", in: []byte("x"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Literal(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Literal(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Literal(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLiteralsReportsPosition(t *testing.T) {
	_, err := Literals([]any{"ok", struct{}{}})
	if err == nil || err.Error() != "parameter 2: unsupported parameter type struct {}" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRewritePlaceholders(t *testing.T) {
	sql := `SELECT '?' AS q, "odd?col" FROM t WHERE a = ? AND b = ? -- trailing ?
AND c = ?`
	got := RewritePlaceholders(sql, func(pos int) string { return "$" + strconv.Itoa(pos) })
	want := `SELECT '?' AS q, "odd?col" FROM t WHERE a = $1 AND b = $2 -- trailing ?
AND c = $3`
	if got != want {
		t.Errorf("RewritePlaceholders() =\n%s\nwant\n%s", got, want)
	}
	if n := CountPlaceholders(sql); n != 3 {
		t.Errorf("CountPlaceholders() = %d, want 3", n)
	}
}

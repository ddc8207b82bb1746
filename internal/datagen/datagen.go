// Package datagen produces synthetic raw batches (users and events) for the
// staging layer to ingest.
package datagen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/nucleus/lakehouse/internal/errs"
)

// TimestampLayout is how raw timestamps are serialized.
const TimestampLayout = "2006-01-02T15:04:05Z"

var (
	EventTypes = []string{"page_view", "click", "purchase", "signup", "login", "logout"}
	Pages      = []string{"/home", "/products", "/checkout", "/about", "/contact", "/profile", "/settings"}
	Countries  = []string{"US", "CA", "UK", "DE", "FR", "AU", "JP"}
	names      = []string{"Zara", "Yusuf", "Xena", "Wade", "Vera", "Uma", "Troy", "Sara", "Rico", "Quinn", "Pam", "Omar", "Nina", "Max", "Luna"}
)

// User is one raw_users record.
type User struct {
	UserID    string `json:"user_id" parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Email     string `json:"email" parquet:"name=email, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name      string `json:"name" parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt string `json:"created_at" parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	Country   string `json:"country" parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Event is one raw_events record. Amount is only set for purchases.
type Event struct {
	EventID   string   `json:"event_id" parquet:"name=event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	UserID    string   `json:"user_id" parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventType string   `json:"event_type" parquet:"name=event_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Page      string   `json:"page" parquet:"name=page, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp string   `json:"timestamp" parquet:"name=timestamp, type=BYTE_ARRAY, convertedtype=UTF8"`
	SessionID string   `json:"session_id" parquet:"name=session_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount    *float64 `json:"amount,omitempty" parquet:"name=amount, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// Generator builds a batch. The same BatchID and Seed always produce the
// same records.
type Generator struct {
	BatchID   string
	Seed      uint64
	UserBase  time.Time
	EventBase time.Time

	rng *rand.Rand
}

// NewGenerator returns a generator with the default base dates.
func NewGenerator(batchID string, seed uint64) *Generator {
	return &Generator{
		BatchID:   batchID,
		Seed:      seed,
		UserBase:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EventBase: time.Date(2026, 2, 24, 14, 0, 0, 0, time.UTC),
	}
}

func (g *Generator) random() *rand.Rand {
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(g.Seed, uint64(len(g.BatchID))))
	}
	return g.rng
}

func (g *Generator) validate() error {
	if g.BatchID == "" {
		return errs.New(errs.CodeInvalidInput, false, "batch id is required")
	}
	return nil
}

// Users generates n users with ids usr-<batch>-001 onwards.
func (g *Generator) Users(n int) ([]User, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errs.New(errs.CodeInvalidInput, false, "user count must not be negative, got %d", n)
	}
	r := g.random()
	users := make([]User, 0, n)
	for i := 1; i <= n; i++ {
		name := names[(i-1)%len(names)]
		created := g.UserBase.AddDate(0, 0, r.IntN(21))
		users = append(users, User{
			UserID:    fmt.Sprintf("usr-%s-%03d", g.BatchID, i),
			Email:     fmt.Sprintf("%s.%s.%d@example.com", strings.ToLower(name), strings.ToLower(g.BatchID), i),
			Name:      fmt.Sprintf("%s %s-%d", name, g.BatchID, i),
			CreatedAt: created.UTC().Format(TimestampLayout),
			Country:   Countries[r.IntN(len(Countries))],
		})
	}
	return users, nil
}

// Events generates m events referencing the given users.
func (g *Generator) Events(users []User, m int) ([]Event, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if m < 0 {
		return nil, errs.New(errs.CodeInvalidInput, false, "event count must not be negative, got %d", m)
	}
	if m > 0 && len(users) == 0 {
		return nil, errs.New(errs.CodeInvalidInput, false, "events need at least one user")
	}
	r := g.random()
	events := make([]Event, 0, m)
	for i := 1; i <= m; i++ {
		eventType := EventTypes[r.IntN(len(EventTypes))]
		ev := Event{
			EventID:   fmt.Sprintf("evt-%s-%03d", g.BatchID, i),
			UserID:    users[r.IntN(len(users))].UserID,
			EventType: eventType,
			Page:      Pages[r.IntN(len(Pages))],
			Timestamp: g.EventBase.Add(time.Duration(r.IntN(121)) * time.Minute).UTC().Format(TimestampLayout),
			SessionID: fmt.Sprintf("sess-%s-%03d", g.BatchID, 1+r.IntN(50)),
		}
		if eventType == "purchase" {
			amount := math.Round((19.99+r.Float64()*280)*100) / 100
			ev.Amount = &amount
		}
		events = append(events, ev)
	}
	return events, nil
}

// UserColumns and EventColumns name the raw table columns in record order.
var (
	UserColumns  = []string{"user_id", "email", "name", "created_at", "country"}
	EventColumns = []string{"event_id", "user_id", "event_type", "page", "timestamp", "session_id", "amount"}
)

// UserRows projects users onto UserColumns for bulk loading.
func UserRows(users []User) [][]any {
	rows := make([][]any, len(users))
	for i, u := range users {
		rows[i] = []any{u.UserID, u.Email, u.Name, u.CreatedAt, u.Country}
	}
	return rows
}

// EventRows projects events onto EventColumns. A missing amount is NULL.
func EventRows(events []Event) [][]any {
	rows := make([][]any, len(events))
	for i, ev := range events {
		var amount any
		if ev.Amount != nil {
			amount = *ev.Amount
		}
		rows[i] = []any{ev.EventID, ev.UserID, ev.EventType, ev.Page, ev.Timestamp, ev.SessionID, amount}
	}
	return rows
}

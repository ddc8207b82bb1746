package datagen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/objectstore"
)

// Format selects the raw file encoding.
type Format string

const (
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
)

// Ext is the object key extension for the format.
func (f Format) Ext() string {
	if f == FormatParquet {
		return "parquet"
	}
	return "json"
}

// ParseFormat accepts "jsonl", "json" or "parquet".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "jsonl", "json":
		return FormatJSONL, nil
	case "parquet":
		return FormatParquet, nil
	}
	return "", errs.New(errs.CodeInvalidInput, false, "unknown format %q (want jsonl or parquet)", s)
}

// Batch is one generated drop of raw data.
type Batch struct {
	ID     string
	Users  []User
	Events []Event
}

// Generate builds a batch of n users and m events.
func (g *Generator) Generate(n, m int) (*Batch, error) {
	users, err := g.Users(n)
	if err != nil {
		return nil, err
	}
	events, err := g.Events(users, m)
	if err != nil {
		return nil, err
	}
	return &Batch{ID: g.BatchID, Users: users, Events: events}, nil
}

// UsersKey and EventsKey are where a batch lands in the raw zone.
func UsersKey(batchID string, f Format) string {
	return fmt.Sprintf("raw/users/raw_users_%s.%s", batchID, f.Ext())
}

func EventsKey(batchID string, f Format) string {
	return fmt.Sprintf("raw/events/raw_events_%s.%s", batchID, f.Ext())
}

// WriteJSONL writes one JSON document per line.
func WriteJSONL[T any](w io.Writer, records []T) error {
	enc := json.NewEncoder(w)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return nil
}

// WriteParquet writes records as a single snappy-compressed parquet file.
// T must carry parquet struct tags.
func WriteParquet[T any](w io.Writer, records []T) error {
	pfw := writerfile.NewWriterFile(w)
	pw, err := writer.NewParquetWriter(pfw, new(T), 4)
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range records {
		if err := pw.Write(records[i]); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}
	return nil
}

func encode[T any](records []T, f Format) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	if f == FormatParquet {
		if err := WriteParquet(buf, records); err != nil {
			return nil, "", errs.Wrap(errs.CodeInternal, false, err)
		}
		return buf.Bytes(), "application/vnd.apache.parquet", nil
	}
	if err := WriteJSONL(buf, records); err != nil {
		return nil, "", errs.Wrap(errs.CodeInternal, false, err)
	}
	return buf.Bytes(), "application/x-ndjson", nil
}

// Publish uploads the batch's users and events files and returns their keys.
func Publish(ctx context.Context, store objectstore.Store, bucket string, b *Batch, f Format) ([]string, error) {
	if b == nil || b.ID == "" {
		return nil, errs.New(errs.CodeInvalidInput, false, "batch id is required")
	}
	if bucket == "" {
		return nil, errs.New(errs.CodeInvalidInput, false, "bucket is required")
	}

	usersData, usersType, err := encode(b.Users, f)
	if err != nil {
		return nil, err
	}
	eventsData, eventsType, err := encode(b.Events, f)
	if err != nil {
		return nil, err
	}

	usersKey, eventsKey := UsersKey(b.ID, f), EventsKey(b.ID, f)
	if err := store.PutObject(ctx, bucket, usersKey, usersData, usersType); err != nil {
		return nil, err
	}
	if err := store.PutObject(ctx, bucket, eventsKey, eventsData, eventsType); err != nil {
		return nil, err
	}
	return []string{usersKey, eventsKey}, nil
}

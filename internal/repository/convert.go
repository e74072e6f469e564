package repository

import (
	"database/sql"
	"encoding/json"
	"time"
)

// nullTimeToPtr converts sql.NullTime to *time.Time.
func nullTimeToPtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// nullStringToPtr converts sql.NullString to *string.
func nullStringToPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// ptrToNullString converts *string to sql.NullString.
func ptrToNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// stringToNullString stores empty strings as NULL.
func stringToNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// decodeImages decodes the images column. Malformed or absent values yield an
// empty list.
func decodeImages(raw sql.NullString) []string {
	images := []string{}
	if !raw.Valid || raw.String == "" {
		return images
	}
	if err := json.Unmarshal([]byte(raw.String), &images); err != nil || images == nil {
		return []string{}
	}
	return images
}

func encodeImages(images []string) string {
	if len(images) == 0 {
		return "[]"
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// decodeObject decodes a JSON object column. Malformed values yield an empty map.
func decodeObject(raw sql.NullString) map[string]any {
	obj := map[string]any{}
	if !raw.Valid || raw.String == "" {
		return obj
	}
	if err := json.Unmarshal([]byte(raw.String), &obj); err != nil || obj == nil {
		return map[string]any{}
	}
	return obj
}

func encodeObject(obj map[string]any) string {
	if len(obj) == 0 {
		return "{}"
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

package models

import "time"

// Field datatypes inferred from sampled values.
const (
	DatatypeNumber  = "number"
	DatatypeDate    = "date"
	DatatypeBoolean = "boolean"
	DatatypeString  = "string"
	DatatypeNull    = "null"
)

// FieldMeta describes one result column. MaxValueLength is the longest
// serialized value seen, used for display column sizing.
type FieldMeta struct {
	Datatype       string `json:"datatype"`
	MaxValueLength int    `json:"maxValueLength"`
}

// QueryResult is a normalized result produced by a connection client.
type QueryResult struct {
	ID           string               `json:"id"`
	CacheKey     string               `json:"cacheKey,omitempty"`
	StartTime    time.Time            `json:"startTime"`
	StopTime     time.Time            `json:"stopTime"`
	QueryRunTime int64                `json:"queryRunTime"` // milliseconds
	Fields       []string             `json:"fields"`
	Incomplete   bool                 `json:"incomplete"`
	Meta         map[string]FieldMeta `json:"meta"`
	Rows         []map[string]any     `json:"rows"`
}

// ResultCacheEntry tracks exported artifacts of a query result until Expiration.
// UserID is the user who ran the query; empty when it ran unauthenticated.
type ResultCacheEntry struct {
	CacheKey   string    `json:"cacheKey"`
	UserID     string    `json:"userId,omitempty"`
	QueryName  string    `json:"queryName"`
	Expiration time.Time `json:"expiration"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// OwnedBy reports whether user ran the query that produced the entry.
func (e ResultCacheEntry) OwnedBy(user *User) bool {
	if user == nil {
		return e.UserID == ""
	}
	return e.UserID == user.ID
}

// Expired reports whether the entry expired before now.
func (e ResultCacheEntry) Expired(now time.Time) bool {
	return e.Expiration.Before(now)
}

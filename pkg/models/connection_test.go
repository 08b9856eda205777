package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionConfig_Accessors(t *testing.T) {
	c := ConnectionConfig{Fields: map[string]any{
		"host":     "db",
		"port":     float64(5433),
		"port_str": "6000",
		"port_int": 7000,
		"ssl":      true,
		"ssl_str":  "false",
		"bad":      "x",
	}}

	assert.Equal(t, "db", c.String("host"))
	assert.Equal(t, "5433", c.String("port"))
	assert.Equal(t, "", c.String("missing"))

	assert.Equal(t, 5433, c.Int("port", 1))
	assert.Equal(t, 6000, c.Int("port_str", 1))
	assert.Equal(t, 7000, c.Int("port_int", 1))
	assert.Equal(t, 1, c.Int("bad", 1))
	assert.Equal(t, 1, c.Int("missing", 1))

	assert.True(t, c.Bool("ssl", false))
	assert.False(t, c.Bool("ssl_str", true))
	assert.True(t, c.Bool("bad", true))
}

func TestConnectionConfig_CloneIsIndependent(t *testing.T) {
	c := ConnectionConfig{ID: "a", Fields: map[string]any{"host": "db"}}

	clone := c.Clone()
	clone.Fields["host"] = "other"
	clone.ID = "b"

	assert.Equal(t, "db", c.Fields["host"])
	assert.Equal(t, "a", c.ID)
}

func TestConnectionConfig_Attributes(t *testing.T) {
	c := ConnectionConfig{
		ID: "c1", Name: "Sales", Driver: "postgres",
		MaxRows: 10, InactivityTimeoutMs: 500,
		Fields: map[string]any{"host": "db"},
	}

	assert.Equal(t, map[string]any{
		"id":                  "c1",
		"name":                "Sales",
		"driver":              "postgres",
		"maxRows":             10,
		"inactivityTimeoutMs": int64(500),
		"host":                "db",
	}, c.Attributes())
}

func TestUser_IsAdmin(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.IsAdmin())
	assert.False(t, (&User{Role: RoleEditor}).IsAdmin())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
	assert.True(t, IsValidRole("editor"))
	assert.False(t, IsValidRole("owner"))
}

func TestResultCacheEntry_OwnedBy(t *testing.T) {
	owned := ResultCacheEntry{CacheKey: "k", UserID: "u1"}
	assert.True(t, owned.OwnedBy(&User{ID: "u1"}))
	assert.False(t, owned.OwnedBy(&User{ID: "u2", Role: RoleAdmin}), "admin is not the owner")
	assert.False(t, owned.OwnedBy(nil))

	anonymous := ResultCacheEntry{CacheKey: "k"}
	assert.True(t, anonymous.OwnedBy(nil))
	assert.False(t, anonymous.OwnedBy(&User{ID: "u1"}))
}

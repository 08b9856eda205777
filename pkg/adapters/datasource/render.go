package datasource

import (
	"regexp"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// userPlaceholder matches {{user.<attr>}} with optional inner whitespace.
var userPlaceholder = regexp.MustCompile(`\{\{\s*user\.(_?[A-Za-z]+)\s*\}\}`)

// RenderConnection substitutes per-user placeholders into every string value
// of the connection. Two users binding the same connection may therefore get
// different effective connections. The input is never modified.
// Unknown attributes, or a nil user, render as empty strings.
func RenderConnection(cfg models.ConnectionConfig, user *models.User) models.ConnectionConfig {
	out := cfg.Clone()
	out.Name = renderString(out.Name, user)
	for k, v := range out.Fields {
		if s, ok := v.(string); ok {
			out.Fields[k] = renderString(s, user)
		}
	}
	return out
}

func renderString(s string, user *models.User) string {
	return userPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		attr := userPlaceholder.FindStringSubmatch(match)[1]
		return userAttribute(user, attr)
	})
}

func userAttribute(user *models.User, attr string) string {
	if user == nil {
		return ""
	}
	switch attr {
	case "id", "_id":
		return user.ID
	case "email":
		return user.Email
	case "name":
		return user.Name
	case "role":
		return user.Role
	}
	return ""
}

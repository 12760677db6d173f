package models

import "strings"

// CategoryForPath picks the endpoint category from path segments. First match
// wins: auth, then admin, then search, otherwise general.
func CategoryForPath(path string) Category {
	var admin, search bool
	for _, seg := range strings.Split(strings.ToLower(path), "/") {
		switch seg {
		case "auth", "login", "logout":
			return CategoryAuth
		case "admin":
			admin = true
		case "search", "list", "lookup":
			search = true
		}
	}
	switch {
	case admin:
		return CategoryAdmin
	case search:
		return CategorySearch
	default:
		return CategoryGeneral
	}
}

// internal/app/system/status/status.go

// Package status holds the shared status values for workspaces and groups.
package status

const (
	Active   = "active"
	Disabled = "disabled"
)

// Valid reports whether s is a known status.
func Valid(s string) bool {
	return s == Active || s == Disabled
}

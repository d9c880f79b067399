// Package config loads and validates the feed daemon configuration.
//
// Config files are YAML with ${VAR} environment expansion. Defaults are
// applied for every omitted optional field; Validate rejects incomplete
// required sections before the daemon starts.
package config

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// configdoc generates markdown documentation from Go struct tags.
// Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md
package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/aplane-algo/apvault/internal/config"
	"github.com/aplane-algo/apvault/internal/logging"
)

// EnvVar represents an environment variable configuration
type EnvVar struct {
	Name        string
	Description string
	UsedBy      string
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		fmt.Println("Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md")
		fmt.Println()
		fmt.Println("Generates markdown documentation from Go struct tags.")
		return
	}
	writeReference(os.Stdout)
}

func writeReference(w io.Writer) {
	fmt.Fprintln(w, "# Configuration Reference")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Auto-generated from Go struct tags. Do not edit manually.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "---")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## apvaultd and apvault Configuration")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: `config.yaml` in the data directory (`-d` or `%s`). ", config.DataDirEnv)
	fmt.Fprintln(w, "Relative paths are resolved against the data directory.")
	fmt.Fprintln(w)
	writeStructTable(w, reflect.TypeOf(config.Config{}), "")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Allow-list File")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Used when `policy.destination` is `allowlist`. Changes are picked up by a running apvaultd.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "```yaml")
	fmt.Fprintln(w, "destinations:")
	fmt.Fprintln(w, "  - <token account address>")
	fmt.Fprintln(w, "```")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Environment Variables")
	fmt.Fprintln(w)
	writeEnvVars(w)
}

func writeStructTable(w io.Writer, t reflect.Type, prefix string) {
	if prefix == "" {
		fmt.Fprintln(w, "| Field | Type | Default | Description |")
		fmt.Fprintln(w, "|-------|------|---------|-------------|")
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Get yaml tag first, fall back to json tag
		tag := field.Tag.Get("yaml")
		if tag == "" {
			tag = field.Tag.Get("json")
		}
		if tag == "" || tag == "-" {
			continue
		}
		// Handle tag options like "omitempty"
		fieldName := strings.Split(tag, ",")[0]
		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		// Nested config blocks, by value or pointer
		nested := field.Type
		if nested.Kind() == reflect.Ptr {
			nested = nested.Elem()
		}
		if nested.Kind() == reflect.Struct {
			desc := field.Tag.Get("description")
			if desc == "" {
				desc = "(nested config block)"
			}
			fmt.Fprintf(w, "| `%s` | object | (none) | %s |\n", fieldName, desc)
			writeStructTable(w, nested, fieldName)
			continue
		}

		desc := field.Tag.Get("description")
		if desc == "" {
			desc = "(no description)"
		}

		def := field.Tag.Get("default")
		switch def {
		case "":
			def = "(none)"
		case `""`:
			def = "(empty string)"
		}

		fmt.Fprintf(w, "| `%s` | %s | `%s` | %s |\n", fieldName, formatType(field.Type), def, desc)
	}
}

func formatType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "uint"
	case reflect.Bool:
		return "bool"
	case reflect.Slice:
		return "[]" + formatType(t.Elem())
	case reflect.Ptr:
		return "*" + formatType(t.Elem())
	default:
		return t.String()
	}
}

func writeEnvVars(w io.Writer) {
	envVars := []EnvVar{
		{config.DataDirEnv, "Data directory (config, ledger, keys, audit log)", "apvaultd, apvault"},
		{logging.DebugEnv, "Set to any value to enable debug logging", "apvaultd, apvault"},
	}

	fmt.Fprintln(w, "| Variable | Description | Used By |")
	fmt.Fprintln(w, "|----------|-------------|---------|")

	for _, env := range envVars {
		fmt.Fprintf(w, "| `%s` | %s | %s |\n", env.Name, env.Description, env.UsedBy)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "### Data Directory Resolution")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. `-d <path>` flag")
	fmt.Fprintf(w, "2. `%s` environment variable\n", config.DataDirEnv)
	fmt.Fprintln(w, "3. `~/.apvault`")
}

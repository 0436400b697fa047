// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"legal-rag-functions/pkg/registry"
)

const defaultManifestPath = "configs/functions.json"

func main() {
	initCmd := flag.NewFlagSet("init", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	initPath := initCmd.String("path", defaultManifestPath, "Path to write the manifest")
	force := initCmd.Bool("force", false, "Overwrite an existing manifest")

	updatePath := updateCmd.String("path", defaultManifestPath, "Path to the manifest")
	idUpdate := updateCmd.String("id", "", "Function ID to update (e.g., submit-chat)")
	field := updateCmd.String("field", "", "Field to update (route, methods, authLevel, description)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", defaultManifestPath, "Path to the manifest")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		initCmd.Parse(os.Args[2:])
		if err := initManifest(*initPath, *force); err != nil {
			fmt.Printf("Error writing manifest: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote manifest with built-in functions: %s\n", *initPath)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateFunction(*updatePath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating function: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated function %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Manifest validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Manifest validation passed. Found %d functions.\n", len(reg.Functions))

	case "help":
		fallthrough
	default:
		help()
	}
}

func initManifest(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}
	reg := registry.Default()
	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, path)
}

func updateFunction(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	found := false
	for i := range reg.Functions {
		if reg.Functions[i].ID != id {
			continue
		}
		found = true
		switch field {
		case "route":
			reg.Functions[i].Route = value
		case "methods":
			reg.Functions[i].Methods = strings.Split(strings.ToUpper(value), ",")
		case "authLevel":
			if value != registry.AuthLevelAnonymous && value != registry.AuthLevelFunction {
				return fmt.Errorf("invalid authLevel: %s", value)
			}
			reg.Functions[i].AuthLevel = value
		case "description":
			reg.Functions[i].Description = value
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}

	if !found {
		return fmt.Errorf("function with ID %s not found", id)
	}

	if err := reg.Validate(); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, path)
}

// saveRegistry handles saving the manifest to file
func saveRegistry(reg *registry.FunctionRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}

	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  init     Write the built-in function manifest
  update   Update a field of an existing function
  validate Validate the manifest file
  help     Show this help message

Examples:
  registry-updater init -path configs/functions.json
  registry-updater update -id submit-chat -field methods -value POST
  registry-updater validate -path configs/functions.json

Set server.manifest_path to serve routes from the manifest.
` + "\n")
}

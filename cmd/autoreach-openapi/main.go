// Package main generates the OpenAPI document for the AutoReach Monitor API
// from the shared route definitions and stub handlers, without any services
// or database.
//
// Usage:
//
//	go run ./cmd/autoreach-openapi > openapi.json
//	go run ./cmd/autoreach-openapi -yaml -output openapi.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/autoreach-api/internal/http/routes"
	"github.com/jmylchreest/autoreach-api/internal/version"
)

func main() {
	outputFile := flag.String("output", "", "Output file path (default: stdout)")
	outputYAML := flag.Bool("yaml", false, "Output as YAML instead of JSON")
	baseURL := flag.String("base-url", "http://localhost:8080", "Base URL for the API server")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get().Short())
		return
	}

	data, err := render(*baseURL, *outputYAML)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error rendering OpenAPI spec: %v\n", err)
		os.Exit(1)
	}

	if *outputFile == "" {
		fmt.Print(string(data))
		return
	}
	if err := os.WriteFile(*outputFile, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing to file: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "OpenAPI spec written to %s\n", *outputFile)
}

// render registers every route with stub handlers and marshals the document.
func render(baseURL string, asYAML bool) ([]byte, error) {
	api := humachi.New(chi.NewRouter(), routes.NewHumaConfig(baseURL))
	routes.Register(api, routes.StubHandlers())

	data, err := json.MarshalIndent(api.OpenAPI(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OpenAPI spec: %w", err)
	}
	if !asYAML {
		return data, nil
	}

	// Decoding the JSON into a node keeps key order, which huma's custom
	// JSON marshalling defines.
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to convert OpenAPI spec to YAML: %w", err)
	}
	return yaml.Marshal(&node)
}

package main

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRender_JSON(t *testing.T) {
	data, err := render("https://api.example.com", false)
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc.Info.Title != "AutoReach Monitor API" {
		t.Errorf("title = %q", doc.Info.Title)
	}
	for _, p := range []string{"/api/v1/analyses", "/api/v1/analyze/stream", "/api/v1/aeo-reports/callback"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Errorf("path %s missing", p)
		}
	}
}

func TestRender_YAML(t *testing.T) {
	data, err := render("", true)
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "openapi:") {
		t.Errorf("YAML should start with the openapi key, got %.40q", data)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if _, ok := doc["paths"]; !ok {
		t.Error("paths missing from YAML output")
	}
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"blast-arena/server"
)

// wireProtocol collects every server-to-client frame so the generator emits
// one schema document covering the whole replication protocol.
type wireProtocol struct {
	Join           server.JoinResponse          `json:"join"`
	State          server.StateMessage          `json:"state"`
	PlayerMoved    server.PlayerMovedMessage    `json:"player_moved"`
	PlayerShoot    server.PlayerShootMessage    `json:"player_shoot"`
	PlayerRespawn  server.PlayerRespawnMessage  `json:"player_respawn"`
	PlayerGameOver server.PlayerGameOverMessage `json:"player_game_over"`
}

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(wireProtocol))
	schema.Title = "Blast Arena Wire Protocol"
	schema.Description = "Validates the server-to-client frames of the arena replication protocol"
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}

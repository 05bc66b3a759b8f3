package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/MrWong99/scribe/internal/config"
	"github.com/MrWong99/scribe/pkg/transcript"
)

func newSchemaCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "schema [transcript|config]",
		Short:     "Print the JSON Schema of transcript.json or of the config file",
		ValidArgs: []string{"transcript", "config"},
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 || (len(args) == 1 && args[0] != "transcript" && args[0] != "config") {
				return &usageError{
					err:   fmt.Errorf("schema: expected transcript or config, got %v", args),
					usage: cmd.UsageString(),
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var schema *jsonschema.Schema
			if len(args) == 1 && args[0] == "config" {
				r := &jsonschema.Reflector{
					AllowAdditionalProperties: true,
					ExpandedStruct:            true,
					FieldNameTag:              "yaml",
				}
				schema = r.Reflect(&config.Config{})
				schema.Title = "scribe configuration"
				schema.Description = "Schema for scribe.yaml."
			} else {
				r := &jsonschema.Reflector{ExpandedStruct: true}
				schema = r.Reflect(&transcript.Document{})
				schema.Title = "scribe transcript"
				schema.Description = "Schema for <project>/transcript.json."
			}

			data, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal schema: %w", err)
			}
			fmt.Fprintln(env.stdout, string(data))
			return nil
		},
	}

	return cmd
}

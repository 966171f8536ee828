package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dipievil/drone-ci-ex-helper/pkg/constants"
	"github.com/dipievil/drone-ci-ex-helper/pkg/document"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
	"github.com/dipievil/drone-ci-ex-helper/pkg/validation"
	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ValidateToolArgs is the input of the validate_drone_yaml tool
type ValidateToolArgs struct {
	Content string `json:"content" jsonschema:"the pipeline YAML to validate"`
	URI     string `json:"uri,omitempty" jsonschema:"optional name of the file the content came from"`
}

// ValidateToolResult is the output of the validate_drone_yaml tool
type ValidateToolResult struct {
	Valid       bool                    `json:"valid"`
	Diagnostics []validation.Diagnostic `json:"diagnostics"`
}

// DescribeToolArgs is the input of the describe_drone_property tool
type DescribeToolArgs struct {
	Name string `json:"name" jsonschema:"top-level pipeline key, for example steps or trigger"`
}

// NewMCPServer exposes pipeline validation as MCP tools
func NewMCPServer(store *schema.Store, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: constants.CLIName, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_drone_yaml",
		Description: "Validate a Drone CI pipeline file and return its diagnostics with 0-based ranges",
	}, func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[ValidateToolArgs]) (*mcp.CallToolResultFor[ValidateToolResult], error) {
		uri := params.Arguments.URI
		if uri == "" {
			uri = "untitled:" + constants.DefaultPipelineFiles[0]
		}

		doc := document.New(uri, 1, params.Arguments.Content)
		vctx := validation.Context{Schema: store.Current(), Settings: validation.DefaultSettings()}
		run := validation.NewSession(vctx, doc, nil).Run()

		result := ValidateToolResult{Valid: len(run.Diagnostics) == 0, Diagnostics: run.Diagnostics}
		if result.Diagnostics == nil {
			result.Diagnostics = []validation.Diagnostic{}
		}
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		return &mcp.CallToolResultFor[ValidateToolResult]{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(data)}},
			StructuredContent: result,
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "describe_drone_property",
		Description: "Describe a top-level Drone CI pipeline key using the loaded schema",
	}, func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[DescribeToolArgs]) (*mcp.CallToolResultFor[any], error) {
		doc := store.Current()
		if doc == nil {
			return nil, schema.ErrNotLoaded
		}
		prop, ok := doc.Property(params.Arguments.Name)
		if !ok {
			return &mcp.CallToolResultFor[any]{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("unknown property %q", params.Arguments.Name)}},
			}, nil
		}
		return &mcp.CallToolResultFor[any]{
			Content: []mcp.Content{&mcp.TextContent{Text: describeProperty(prop)}},
		}, nil
	})

	return server
}

// RunMCPServer serves the tools over stdio until ctx is cancelled or the client disconnects
func RunMCPServer(ctx context.Context, store *schema.Store) error {
	log.Infof("starting MCP server %s", GetVersion())
	return NewMCPServer(store, GetVersion()).Run(ctx, mcp.NewStdioTransport())
}

func describeProperty(prop schema.Property) string {
	var b strings.Builder
	b.WriteString(prop.Name)
	if prop.Type != "" {
		b.WriteString(" (" + prop.Type + ")")
	}
	if prop.Description != "" {
		b.WriteString(": " + prop.Description)
	}
	if len(prop.Enum) > 0 {
		b.WriteString("\nValid values: " + strings.Join(prop.Enum, ", "))
	}
	return b.String()
}

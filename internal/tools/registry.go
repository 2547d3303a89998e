// SPDX-License-Identifier: AGPL-3.0-only
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/acupofespresso/mcp-client/internal/agent"
	"github.com/acupofespresso/mcp-client/internal/config"
	"github.com/acupofespresso/mcp-client/internal/errors"
	"github.com/acupofespresso/mcp-client/internal/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerSpec describes one MCP server entry in a cursor-style mcp.json.
type ServerSpec struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// serverFile is the on-disk shape of the MCP configuration file.
type serverFile struct {
	MCPServers map[string]ServerSpec `json:"mcpServers"`
}

// LoadServerSpecs reads and parses the MCP server configuration file.
func LoadServerSpecs(path string) (map[string]ServerSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read MCP config: %w", err)
	}
	var file serverFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errors.InvalidInput(fmt.Sprintf("parse MCP config %s: %v", path, err))
	}
	return file.MCPServers, nil
}

// Registry holds the MCP sessions opened during the startup handshake and
// routes tool calls to the session that owns each tool. Sessions stay open
// for the lifetime of the client.
type Registry struct {
	tools     []agent.ToolDefinition
	sessions  map[string]*mcp.ClientSession
	toolOwner map[string]string // toolName -> serverName
	logger    *logging.Logger
}

// Connect performs the one-time handshake: it opens a session to every server
// in the MCP config (stdio subprocess or SSE), lists each server's tools, and
// returns a Registry over all of them. A server that fails to connect or list
// is logged and skipped, not fatal.
func Connect(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Registry, error) {
	specs, err := LoadServerSpecs(cfg.MCP.ConfigFilePath)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		sessions:  map[string]*mcp.ClientSession{},
		toolOwner: map[string]string{},
		logger:    logger,
	}

	for name, spec := range specs {
		var tp mcp.Transport
		switch {
		case spec.Command != "":
			cmd := exec.Command(spec.Command, spec.Args...)
			if len(spec.Env) > 0 {
				cmd.Env = os.Environ()
				for k, v := range spec.Env {
					cmd.Env = append(cmd.Env, k+"="+v)
				}
			}
			tp = &mcp.CommandTransport{Command: cmd}
		case spec.URL != "":
			tp = &mcp.SSEClientTransport{Endpoint: spec.URL}
		default:
			logger.Warnf("Server %s has neither command nor url, skipping", name)
			continue
		}

		cli := mcp.NewClient(&mcp.Implementation{
			Name:    cfg.Client.Name,
			Version: cfg.Client.Version,
		}, nil)
		session, err := cli.Connect(ctx, tp, nil)
		if err != nil {
			logger.Warnf("Failed to connect to server %s: %v", name, err)
			continue
		}

		resp, err := session.ListTools(ctx, nil)
		if err != nil {
			logger.Warnf("Failed to list tools for server %s: %v", name, err)
			_ = session.Close()
			continue
		}

		r.sessions[name] = session
		for _, tl := range resp.Tools {
			params, err := schemaToMap(tl.InputSchema)
			if err != nil {
				logger.Warnf("Failed to convert input schema for tool %s: %v", tl.Name, err)
				continue
			}
			normalizeEmptySchema(params)

			if owner, exists := r.toolOwner[tl.Name]; exists {
				logger.Warnf("Tool %s from server %s shadows the one from %s, keeping the first", tl.Name, name, owner)
				continue
			}
			r.tools = append(r.tools, agent.ToolDefinition{
				Name:        tl.Name,
				Description: tl.Description,
				Parameters:  params,
			})
			r.toolOwner[tl.Name] = name
		}
		logger.Infof("Connected to server %s (%d tools)", name, len(resp.Tools))
	}

	return r, nil
}

// schemaToMap converts a tool's input schema to the map form the providers expect.
func schemaToMap(schema any) (map[string]interface{}, error) {
	if schema == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// normalizeEmptySchema rewrites an empty object schema to carry one dummy
// string parameter. OpenAI-compatible endpoints reject tools whose schema has
// no properties.
func normalizeEmptySchema(params map[string]interface{}) {
	if params["type"] != "object" {
		return
	}
	props, _ := params["properties"].(map[string]interface{})
	if len(props) > 0 {
		return
	}
	params["properties"] = map[string]interface{}{
		"random_string": map[string]interface{}{
			"type":        "string",
			"description": "Dummy parameter for no-parameter tools",
		},
	}
	params["required"] = []string{"random_string"}
}

// Definitions returns the tools discovered during the handshake.
func (r *Registry) Definitions() []agent.ToolDefinition {
	return r.tools
}

// Names returns the discovered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Call routes a model tool call to the owning server's session and flattens
// the result into a single string. Unparseable argument JSON degrades to an
// empty argument object rather than failing the call.
func (r *Registry) Call(ctx context.Context, call agent.ToolCall) (string, error) {
	serverName, ok := r.toolOwner[call.Name]
	if !ok {
		return "", errors.NotFound("tool", call.Name)
	}
	session, ok := r.sessions[serverName]
	if !ok {
		return "", errors.NotFound("server", serverName)
	}

	args := map[string]interface{}{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			r.logger.Warnf("Tool %s arguments are not valid JSON, calling with empty input: %v", call.Name, err)
			args = map[string]interface{}{}
		}
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      call.Name,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Internal(fmt.Errorf("call tool %s: %w", call.Name, err))
	}

	out := flattenContent(res.Content)
	if res.IsError {
		return "", fmt.Errorf("tool %s failed: %s", call.Name, out)
	}
	return out, nil
}

// flattenContent joins text content blocks; non-text blocks fall back to JSON.
func flattenContent(content []mcp.Content) string {
	var text string
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			if text != "" {
				text += "\n"
			}
			text += tc.Text
		}
	}
	if text != "" {
		return text
	}
	out, _ := json.Marshal(content)
	return string(out)
}

// Close shuts down every session opened during the handshake.
func (r *Registry) Close() error {
	var firstErr error
	for name, session := range r.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %s: %w", name, err)
		}
	}
	return firstErr
}

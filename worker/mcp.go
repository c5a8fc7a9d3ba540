package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/prontopub/inkwell/blockpipe"
	"github.com/prontopub/inkwell/canonhash"
	"github.com/prontopub/inkwell/lineage"
	"github.com/prontopub/inkwell/manuscript"
)

// RegisterMCP registers the manuscript tools on an MCP server.
func (w *Worker) RegisterMCP(srv *mcp.Server) {
	w.registerProcess(srv)
	w.registerDetect(srv)
	w.registerHash(srv)
	w.registerVerify(srv)
	w.registerLineage(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerTool wires an endpoint as an MCP tool: arguments arrive as raw
// JSON, results are marshaled to JSON text, and failures are reported as
// tool errors rather than protocol errors.
func registerTool(srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, json.RawMessage) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := endpoint(ctx, req.Params.Arguments)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func (w *Worker) registerProcess(srv *mcp.Server) {
	type req struct {
		Path     string `json:"path"`
		Filename string `json:"filename"`
		Store    bool   `json:"store"`
	}

	tool := &mcp.Tool{
		Name:        "manuscript_process",
		Description: "Process a manuscript file into a structured artifact: extract, classify blocks, analyze quality, validate",
		InputSchema: inputSchema(map[string]any{
			"path":     map[string]any{"type": "string", "description": "Local path, file:// or http(s):// reference"},
			"filename": map[string]any{"type": "string", "description": "Original filename recorded in the artifact"},
			"store":    map[string]any{"type": "boolean", "description": "Persist the artifact to the blob store"},
		}, []string{"path"}),
	}

	registerTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		art, res, err := w.ProcessFile(ctx, FileRequest{
			Path:     p.Path,
			Filename: p.Filename,
			Store:    p.Store,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"result": res, "artifact": art}, nil
	})
}

func (w *Worker) registerDetect(srv *mcp.Server) {
	type req struct {
		Path string `json:"path"`
	}

	tool := &mcp.Tool{
		Name:        "manuscript_detect",
		Description: "Detect the manuscript format for a file path",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path or name; the extension decides"},
		}, []string{"path"}),
	}

	registerTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		format, err := w.Detect(p.Path)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"format":            format,
			"supported_formats": blockpipe.SupportedFormats(),
		}, nil
	})
}

func (w *Worker) registerHash(srv *mcp.Server) {
	type req struct {
		Path      string `json:"path"`
		Algorithm string `json:"algorithm"`
	}

	tool := &mcp.Tool{
		Name:        "artifact_hash",
		Description: "Compute the canonical content hash of a stored artifact JSON file",
		InputSchema: inputSchema(map[string]any{
			"path":      map[string]any{"type": "string", "description": "Path to an artifact JSON file"},
			"algorithm": map[string]any{"type": "string", "description": "sha256 (default), sha1, md5 or blake3"},
		}, []string{"path"}),
	}

	registerTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if p.Algorithm == "" {
			p.Algorithm = canonhash.DefaultAlgorithm
		}
		v, err := loadArtifactJSON(p.Path)
		if err != nil {
			return nil, err
		}
		ref, err := canonhash.Compute(v, p.Algorithm)
		if err != nil {
			return nil, err
		}
		return map[string]any{"hash": ref, "algorithm": p.Algorithm, "path": p.Path}, nil
	})
}

func (w *Worker) registerVerify(srv *mcp.Server) {
	type req struct {
		Path string `json:"path"`
		Hash string `json:"hash"`
	}

	tool := &mcp.Tool{
		Name:        "artifact_verify",
		Description: "Verify a stored artifact JSON file against a declared canonical hash",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Path to an artifact JSON file"},
			"hash": map[string]any{"type": "string", "description": "Declared hash, algorithm:hexdigest"},
		}, []string{"path", "hash"}),
	}

	registerTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		v, err := loadArtifactJSON(p.Path)
		if err != nil {
			return nil, err
		}
		ok, err := canonhash.Verify(v, p.Hash)
		if err != nil {
			return nil, err
		}
		out := map[string]any{"valid": ok, "declared_hash": p.Hash}
		if !ok {
			algo, _ := canonhash.ExtractAlgorithm(p.Hash)
			if actual, aerr := canonhash.Compute(v, algo); aerr == nil {
				out["actual_hash"] = actual
			}
		}
		return out, nil
	})
}

func (w *Worker) registerLineage(srv *mcp.Server) {
	type req struct {
		Path        string `json:"path"`
		IncludeSelf *bool  `json:"include_self"`
	}

	tool := &mcp.Tool{
		Name:        "artifact_lineage",
		Description: "Show the provenance chain of a stored artifact JSON file",
		InputSchema: inputSchema(map[string]any{
			"path":         map[string]any{"type": "string", "description": "Path to an artifact JSON file"},
			"include_self": map[string]any{"type": "boolean", "description": "Append the artifact itself to the chain (default true)"},
		}, []string{"path"}),
	}

	registerTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		includeSelf := true
		if p.IncludeSelf != nil {
			includeSelf = *p.IncludeSelf
		}

		data, err := os.ReadFile(p.Path)
		if err != nil {
			return nil, fmt.Errorf("read artifact: %w", err)
		}
		var art manuscript.Artifact
		if err := json.Unmarshal(data, &art); err != nil {
			return nil, fmt.Errorf("parse artifact: %w", err)
		}

		chain := lineage.BuildChain(&art, includeSelf)
		return map[string]any{
			"chain":     chain,
			"formatted": lineage.FormatChain(chain),
			"source":    lineage.TraceToSource(&art),
		}, nil
	})
}

func loadArtifactJSON(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	return v, nil
}

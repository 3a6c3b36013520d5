package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"

	appErrors "github.com/unclebandit/customer-support-mcp/internal/errors"
	"github.com/unclebandit/customer-support-mcp/internal/mcp"
	"github.com/unclebandit/customer-support-mcp/internal/metricskey"
	"github.com/unclebandit/customer-support-mcp/internal/tools"
)

var logger = xlog.NewPackageLogger("github.com/unclebandit/customer-support-mcp/internal", "controller")

// McpController routes JSON-RPC requests to the tool registry. It keeps no
// state between requests.
type McpController struct {
	Registry      *tools.Registry
	ServerName    string
	ServerVersion string
}

// Dispatch returns the response for req. An error means the request could
// not be routed at all and is reported by the transport as a parse error.
func (c *McpController) Dispatch(ctx context.Context, req *mcp.Request) (*mcp.Response, error) {
	started := time.Now()
	defer metricskey.PerfRPCRequest.MeasureSince(started, req.Method)
	metricskey.StatsRPCRequests.IncrCounter(1, req.Method)

	logger.ContextKV(ctx, xlog.DEBUG, "method", req.Method, "id", string(req.ID))

	var resp *mcp.Response
	switch req.Method {
	case mcp.MethodInitialize:
		resp = mcp.NewResult(req.ID, c.initialize())
	case mcp.MethodToolsList:
		resp = mcp.NewResult(req.ID, c.listTools())
	case mcp.MethodToolsCall:
		var params mcp.ToolsCallParams
		if p := bytes.TrimSpace(req.Params); len(p) > 0 {
			if err := json.Unmarshal(p, &params); err != nil {
				return nil, errors.Wrap(err, "invalid tools/call params")
			}
		}
		resp = c.callTool(ctx, req.ID, &params)
	default:
		resp = mcp.NewError(req.ID, mcp.CodeMethodNotFound, "Unsupported method: "+req.Method)
	}

	if resp.Error != nil {
		metricskey.StatsRPCErrors.IncrCounter(1, strconv.Itoa(resp.Error.Code))
	}
	return resp, nil
}

func (c *McpController) initialize() *mcp.InitializeResult {
	return &mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    mcp.ServerCapabilities{Tools: &mcp.ToolCapability{}},
		ServerInfo: mcp.ServerInfo{
			Name:    c.ServerName,
			Version: c.ServerVersion,
		},
	}
}

func (c *McpController) listTools() *mcp.ToolsListResult {
	list := c.Registry.List()
	res := &mcp.ToolsListResult{Tools: make([]mcp.ToolDescription, 0, len(list))}
	for _, t := range list {
		res.Tools = append(res.Tools, mcp.ToolDescription{
			Name:        t.Name().String(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return res
}

func (c *McpController) callTool(ctx context.Context, id json.RawMessage, params *mcp.ToolsCallParams) *mcp.Response {
	tool, ok := c.Registry.Lookup(params.Name)
	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, params.Name)
		logger.ContextKV(ctx, xlog.WARNING, "reason", "unknown_tool", "tool", params.Name)
		return mcp.NewError(id, mcp.CodeMethodNotFound, "Unknown tool "+params.Name)
	}

	name := tool.Name().String()
	started := time.Now()
	defer metricskey.PerfToolCall.MeasureSince(started, name)

	text, err := invoke(ctx, tool, params.Arguments)
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.ERROR,
			"tool", name,
			"duration", time.Since(started).String(),
			"err", err.Error())
		return mcp.NewError(id, mcp.CodeExecution, err.Error())
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	logger.ContextKV(ctx, xlog.DEBUG,
		"tool", name,
		"duration", time.Since(started).String())
	return mcp.NewResult(id, mcp.TextResult(text))
}

// invoke runs the tool and renders its result. Panics are returned as
// execution errors.
func invoke(ctx context.Context, tool tools.ITool, args json.RawMessage) (text string, err error) {
	name := tool.Name().String()
	defer func() {
		if r := recover(); r != nil {
			err = appErrors.NewPanicError(name, r)
		}
	}()

	res, err := tool.Call(ctx, args)
	if err != nil {
		return "", appErrors.NewExecutionError(name, err)
	}
	if o := res.GetOutcome(); !o.Success {
		metricskey.StatsToolDomainFailures.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.INFO, "tool", name, "failure", o.Error)
	}

	text, err = tools.Text(res)
	if err != nil {
		return "", appErrors.NewExecutionError(name, err)
	}
	return text, nil
}

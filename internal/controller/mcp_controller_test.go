package controller_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/mock/gomock"

	"github.com/unclebandit/customer-support-mcp/internal/controller"
	"github.com/unclebandit/customer-support-mcp/internal/db"
	"github.com/unclebandit/customer-support-mcp/internal/db/dbtest"
	"github.com/unclebandit/customer-support-mcp/internal/mcp"
	"github.com/unclebandit/customer-support-mcp/internal/mocks/mocktools"
	"github.com/unclebandit/customer-support-mcp/internal/model"
	"github.com/unclebandit/customer-support-mcp/internal/repository"
	"github.com/unclebandit/customer-support-mcp/internal/service"
	"github.com/unclebandit/customer-support-mcp/internal/tools"
)

func newController(t *testing.T) (*controller.McpController, *service.SupportService) {
	conn := dbtest.Open(t)
	svc := &service.SupportService{
		CustomerRepo: &repository.CustomerRepository{DB: conn, Dialect: db.SQLite},
		TicketRepo:   &repository.TicketRepository{DB: conn, Dialect: db.SQLite},
	}
	return &controller.McpController{
		Registry:      tools.NewRegistry(svc),
		ServerName:    "customer-support-mcp-server",
		ServerVersion: "1.0.0",
	}, svc
}

func dispatch(t *testing.T, c *controller.McpController, body string) string {
	var req mcp.Request
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	resp, err := c.Dispatch(context.Background(), &req)
	require.NoError(t, err)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(b)
}

// payload returns the JSON text carried in the first content block.
func payload(t *testing.T, resp string) string {
	require.False(t, gjson.Get(resp, "error").Exists(), resp)
	assert.Equal(t, "text", gjson.Get(resp, "result.content.0.type").String())
	text := gjson.Get(resp, "result.content.0.text").String()
	require.True(t, gjson.Valid(text), text)
	return text
}

func TestDispatch_Initialize(t *testing.T) {
	c, _ := newController(t)

	resp := dispatch(t, c, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	assert.JSONEq(t, `{
		"jsonrpc":"2.0","id":1,
		"result":{
			"protocolVersion":"2024-11-05",
			"capabilities":{"tools":{}},
			"serverInfo":{"name":"customer-support-mcp-server","version":"1.0.0"}
		}
	}`, resp)
}

func TestDispatch_ToolsList(t *testing.T) {
	c, _ := newController(t)

	resp := dispatch(t, c, `{"jsonrpc":"2.0","id":"list","method":"tools/list"}`)
	assert.Equal(t, "list", gjson.Get(resp, "id").String())

	list := gjson.Get(resp, "result.tools").Array()
	require.Len(t, list, 5)
	names := make([]string, 0, len(list))
	for _, tool := range list {
		names = append(names, tool.Get("name").String())
		assert.NotEmpty(t, tool.Get("description").String())
		assert.Equal(t, "object", tool.Get("inputSchema.type").String())
	}
	assert.Equal(t, []string{"get_customer", "list_customers", "update_customer", "create_ticket", "get_customer_history"}, names)
}

func TestDispatch_UnsupportedMethod(t *testing.T) {
	c, _ := newController(t)

	resp := dispatch(t, c, `{"jsonrpc":"2.0","id":3,"method":"resources/list"}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"Unsupported method: resources/list"}}`, resp)

	// requests without an id are answered with id null
	resp = dispatch(t, c, `{"jsonrpc":"2.0","method":"ping"}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32601,"message":"Unsupported method: ping"}}`, resp)
}

func TestDispatch_UnknownTool(t *testing.T) {
	c, _ := newController(t)

	resp := dispatch(t, c, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"bogus_tool","arguments":{}}}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":4,"error":{"code":-32601,"message":"Unknown tool bogus_tool"}}`, resp)
}

func TestDispatch_CustomerNotFound(t *testing.T) {
	c, _ := newController(t)

	resp := dispatch(t, c, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"get_customer","arguments":{"customer_id":5}}}`)
	assert.Equal(t, int64(5), gjson.Get(resp, "id").Int())
	assert.JSONEq(t, `{"success":false,"error":"Customer 5 not found"}`, payload(t, resp))
}

func TestDispatch_InvalidPriority(t *testing.T) {
	c, svc := newController(t)
	require.NoError(t, svc.CustomerRepo.Create(context.Background(), &model.Customer{Name: "Alice"}))

	resp := dispatch(t, c, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"create_ticket","arguments":{"customer_id":1,"issue":"billing","priority":"urgent"}}}`)
	assert.JSONEq(t, `{"success":false,"error":"Invalid priority"}`, payload(t, resp))
}

func TestDispatch_TicketRoundTrip(t *testing.T) {
	c, svc := newController(t)
	require.NoError(t, svc.CustomerRepo.Create(context.Background(), &model.Customer{Name: "Alice"}))

	resp := dispatch(t, c, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"create_ticket","arguments":{"customer_id":1,"issue":"cannot log in","priority":"high"}}}`)
	created := payload(t, resp)
	assert.True(t, gjson.Get(created, "success").Bool())
	ticketID := gjson.Get(created, "ticket.id").Int()
	assert.NotZero(t, ticketID)
	assert.Equal(t, "open", gjson.Get(created, "ticket.status").String())
	assert.Equal(t, "high", gjson.Get(created, "ticket.priority").String())

	resp = dispatch(t, c, `{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"get_customer_history","arguments":{"customer_id":1}}}`)
	history := payload(t, resp)
	assert.Equal(t, "Alice", gjson.Get(history, "customer.name").String())
	tickets := gjson.Get(history, "tickets").Array()
	require.Len(t, tickets, 1)
	assert.Equal(t, ticketID, tickets[0].Get("id").Int())
}

func TestDispatch_UpdateAndList(t *testing.T) {
	c, svc := newController(t)
	ctx := context.Background()
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		require.NoError(t, svc.CustomerRepo.Create(ctx, &model.Customer{Name: name}))
	}

	resp := dispatch(t, c, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"update_customer","arguments":{"customer_id":2,"data":{"status":"inactive","nickname":"bobby"}}}}`)
	updated := payload(t, resp)
	assert.True(t, gjson.Get(updated, "success").Bool())
	assert.Equal(t, "inactive", gjson.Get(updated, "customer.status").String())

	resp = dispatch(t, c, `{"jsonrpc":"2.0","id":10,"method":"tools/call","params":{"name":"update_customer","arguments":{"customer_id":2,"data":{"nickname":"bobby"}}}}`)
	assert.JSONEq(t, `{"success":false,"error":"No valid fields to update"}`, payload(t, resp))

	resp = dispatch(t, c, `{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":"list_customers","arguments":{"status":"active","limit":1}}}`)
	list := gjson.Get(payload(t, resp), "customers").Array()
	require.Len(t, list, 1)
	assert.Equal(t, "Alice", list[0].Get("name").String())

	resp = dispatch(t, c, `{"jsonrpc":"2.0","id":12,"method":"tools/call","params":{"name":"list_customers"}}`)
	assert.Len(t, gjson.Get(payload(t, resp), "customers").Array(), 3)
}

func TestDispatch_UpdateIgnoresUnknownKeyValues(t *testing.T) {
	c, svc := newController(t)
	require.NoError(t, svc.CustomerRepo.Create(context.Background(), &model.Customer{Name: "Alice"}))

	resp := dispatch(t, c, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"update_customer","arguments":{"customer_id":1,"data":{"name":"Bob","vip":true}}}}`)
	updated := payload(t, resp)
	assert.True(t, gjson.Get(updated, "success").Bool())
	assert.Equal(t, "Bob", gjson.Get(updated, "customer.name").String())

	resp = dispatch(t, c, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"update_customer","arguments":{"customer_id":1,"data":{"age":30}}}}`)
	assert.JSONEq(t, `{"success":false,"error":"No valid fields to update"}`, payload(t, resp))

	resp = dispatch(t, c, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"create_ticket","arguments":{"customer_id":1,"issue":"x","priority":null}}}`)
	assert.JSONEq(t, `{"success":false,"error":"Invalid priority"}`, payload(t, resp))
}

func TestDispatch_ArgumentFault(t *testing.T) {
	c, _ := newController(t)

	resp := dispatch(t, c, `{"jsonrpc":"2.0","id":13,"method":"tools/call","params":{"name":"get_customer","arguments":{}}}`)
	assert.Equal(t, int64(-32000), gjson.Get(resp, "error.code").Int())
	assert.Equal(t, "invalid arguments for get_customer: missing required argument: customer_id", gjson.Get(resp, "error.message").String())
	assert.False(t, gjson.Get(resp, "result").Exists())
}

func TestDispatch_ServiceFaultAndPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocktools.NewMockService(ctrl)
	c := &controller.McpController{Registry: tools.NewRegistry(svc), ServerName: "test", ServerVersion: "0"}

	svc.EXPECT().GetCustomer(gomock.Any(), int64(1)).Return(nil, errors.New("database disk image is malformed"))
	resp := dispatch(t, c, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_customer","arguments":{"customer_id":1}}}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"database disk image is malformed"}}`, resp)

	svc.EXPECT().GetCustomerHistory(gomock.Any(), int64(1)).DoAndReturn(
		func(context.Context, int64) (*service.HistoryResult, error) {
			panic("nil map")
		})
	resp = dispatch(t, c, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_customer_history","arguments":{"customer_id":1}}}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"error":{"code":-32000,"message":"panic: nil map"}}`, resp)
}

func TestDispatch_MalformedParams(t *testing.T) {
	c, _ := newController(t)

	_, err := c.Dispatch(context.Background(), &mcp.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage("1"),
		Method:  mcp.MethodToolsCall,
		Params:  json.RawMessage(`["get_customer"]`),
	})
	assert.Error(t, err)

	// absent params behave like an empty object
	resp, err := c.Dispatch(context.Background(), &mcp.Request{JSONRPC: "2.0", ID: json.RawMessage("2"), Method: mcp.MethodToolsCall})
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "Unknown tool ", resp.Error.Message)
}

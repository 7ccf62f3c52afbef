package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Action names the backend operation an outbound call invokes. It is always
// written by the gateway and never taken from the caller.
type Action string

const (
	ActionGetTasks        Action = "getTasks"
	ActionGetManagerTasks Action = "getManagerTasks"
	ActionUpdateStatus    Action = "updateStatus"
	ActionLeave           Action = "leave"
	ActionGetAllStatus    Action = "getAllStatus"
	ActionGetStatusRange  Action = "getStatusRange"
	ActionGetUserTeam     Action = "getUserTeam"
	ActionAssignTask      Action = "assignTask"
)

// ActionKey is the reserved envelope key carrying the Action.
const ActionKey = "action"

// Source says where a route reads its fields from.
type Source int

const (
	// SourceQuery reads the declared fields from the query string.
	SourceQuery Source = iota
	// SourceBody reads only the declared fields from a JSON body.
	SourceBody
	// SourcePassThrough forwards every field of a JSON body.
	SourcePassThrough
)

func (s Source) String() string {
	switch s {
	case SourceQuery:
		return "query"
	case SourceBody:
		return "body"
	case SourcePassThrough:
		return "body (pass-through)"
	default:
		return "unknown"
	}
}

// Route binds one inbound method+path to one backend action.
type Route struct {
	Method string
	Path   string
	Action Action
	Source Source
	// Fields lists the extracted field names, in outbound order. Missing
	// ones are forwarded as "". Unused for SourcePassThrough.
	Fields []string
}

// Routes is the complete inbound surface of the gateway.
var Routes = []Route{
	{
		Method: http.MethodGet,
		Path:   "/api/user-tasks",
		Action: ActionGetTasks,
		Source: SourceQuery,
		Fields: []string{"username", "date"},
	},
	{
		Method: http.MethodGet,
		Path:   "/api/manager-tasks",
		Action: ActionGetManagerTasks,
		Source: SourceQuery,
		Fields: []string{"manager", "date"},
	},
	{
		Method: http.MethodPost,
		Path:   "/api/update-status",
		Action: ActionUpdateStatus,
		Source: SourcePassThrough,
	},
	{
		Method: http.MethodPost,
		Path:   "/api/leave",
		Action: ActionLeave,
		Source: SourcePassThrough,
	},
	{
		Method: http.MethodGet,
		Path:   "/api/all-status",
		Action: ActionGetAllStatus,
		Source: SourceQuery,
		Fields: []string{"date", "manager", "username"},
	},
	{
		Method: http.MethodGet,
		Path:   "/api/all-status-range",
		Action: ActionGetStatusRange,
		Source: SourceQuery,
		Fields: []string{"start", "end", "username"},
	},
	{
		Method: http.MethodGet,
		Path:   "/api/user-team",
		Action: ActionGetUserTeam,
		Source: SourceQuery,
		Fields: []string{"username"},
	},
	{
		Method: http.MethodPost,
		Path:   "/api/assign-task",
		Action: ActionAssignTask,
		Source: SourceBody,
		Fields: []string{"username", "task", "manager", "date", "assignTo"},
	},
}

// ErrUnknownAction is returned when no route carries the requested action.
var ErrUnknownAction = errors.New("unknown action")

// LookupAction finds the route for an action name.
func LookupAction(name string) (Route, error) {
	for _, r := range Routes {
		if string(r.Action) == name {
			return r, nil
		}
	}
	return Route{}, fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

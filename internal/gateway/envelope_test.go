package gateway

import (
	"encoding/json"
	"net/url"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRoute(t *testing.T, action Action) Route {
	t.Helper()
	r, err := LookupAction(string(action))
	require.NoError(t, err)
	return r
}

func decodeEnvelope(t *testing.T, env *Envelope) map[string]any {
	t.Helper()
	data, err := env.MarshalJSON()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestFromQuery_DefaultsMissingFields(t *testing.T) {
	route := mustRoute(t, ActionGetAllStatus)
	env := FromQuery(route, url.Values{"date": {"2024-01-01"}, "extra": {"ignored"}})

	want := map[string]any{
		"action":   "getAllStatus",
		"date":     "2024-01-01",
		"manager":  "",
		"username": "",
	}
	if diff := cmp.Diff(want, decodeEnvelope(t, env)); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}
}

func TestFromQuery_CallerActionIgnored(t *testing.T) {
	route := mustRoute(t, ActionGetTasks)
	env := FromQuery(route, url.Values{"action": {"deleteEverything"}, "username": {"alice"}})

	assert.Equal(t, "getTasks", env.String(ActionKey))
	assert.Equal(t, "action=getTasks&username=alice&date=", env.EncodeQuery())
}

func TestFromQuery_FirstValueWins(t *testing.T) {
	route := mustRoute(t, ActionGetUserTeam)
	env := FromQuery(route, url.Values{"username": {"alice", "bob"}})
	assert.Equal(t, "alice", env.String("username"))
}

func TestFromBody_AssignTaskScenario(t *testing.T) {
	route := mustRoute(t, ActionAssignTask)
	body := `{"username":"alice","task":"T1","manager":"bob","date":"2024-01-01","assignTo":"carol"}`

	data, err := FromBody(route, []byte(body)).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"action":"assignTask","username":"alice","task":"T1","manager":"bob","date":"2024-01-01","assignTo":"carol"}`,
		string(data))
}

func TestFromBody_DeclaredFieldsOnly(t *testing.T) {
	route := mustRoute(t, ActionAssignTask)
	env := FromBody(route, []byte(`{"action":"leave","username":"alice","admin":true}`))

	want := map[string]any{
		"action":   "assignTask",
		"username": "alice",
		"task":     "",
		"manager":  "",
		"date":     "",
		"assignTo": "",
	}
	if diff := cmp.Diff(want, decodeEnvelope(t, env)); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"username", "task", "manager", "date", "assignTo"}, env.Keys())
}

func TestFromBody_PassThrough(t *testing.T) {
	route := mustRoute(t, ActionUpdateStatus)
	env := FromBody(route, []byte(`{"username":"alice","done":true,"count":3,"meta":{"a":[1,2]},"action":"assignTask"}`))

	data, err := env.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"action":"updateStatus","count":3,"done":true,"meta":{"a":[1,2]},"username":"alice"}`,
		string(data))
}

func TestFromBody_InvalidUTF8Repaired(t *testing.T) {
	for _, action := range []Action{ActionLeave, ActionAssignTask} {
		t.Run(string(action), func(t *testing.T) {
			env := FromBody(mustRoute(t, action), []byte("{\"username\":\"al\xffice\"}"))

			data, err := env.MarshalJSON()
			require.NoError(t, err)
			assert.True(t, utf8.Valid(data), "outbound body is not valid UTF-8")
			assert.Contains(t, string(data), "\"username\":\"al\uFFFDice\"")
		})
	}
}

func TestFromBody_UnusableBodies(t *testing.T) {
	route := mustRoute(t, ActionLeave)
	for _, body := range []string{"", "   ", "not json", "[1,2]", "null", `"str"`, `{"a":`} {
		t.Run(body, func(t *testing.T) {
			data, err := FromBody(route, []byte(body)).MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, `{"action":"leave"}`, string(data))
		})
	}
}

func TestEnvelope_EncodeQueryEscapes(t *testing.T) {
	env := NewEnvelope(ActionGetTasks)
	env.Set("username", "a b&c=d")
	env.Set("date", json.RawMessage(`"2024-01-01"`))
	env.Set("n", json.RawMessage(`12`))
	env.Set("none", json.RawMessage(`null`))

	q, err := url.ParseQuery(env.EncodeQuery())
	require.NoError(t, err)
	assert.Equal(t, "a b&c=d", q.Get("username"))
	assert.Equal(t, "2024-01-01", q.Get("date"))
	assert.Equal(t, "12", q.Get("n"))
	assert.Equal(t, "", q.Get("none"))
	assert.Equal(t, "getTasks", q.Get("action"))
}

func TestEnvelope_SetKeepsFirstPosition(t *testing.T) {
	env := NewEnvelope(ActionLeave)
	env.Set("b", "1")
	env.Set("a", "2")
	env.Set("b", "3")

	data, err := env.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"action":"leave","b":"3","a":"2"}`, string(data))
}

func TestLookupAction(t *testing.T) {
	r, err := LookupAction("getStatusRange")
	require.NoError(t, err)
	assert.Equal(t, "/api/all-status-range", r.Path)

	_, err = LookupAction("dropTables")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

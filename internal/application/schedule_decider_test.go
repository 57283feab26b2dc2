package application

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDecider(maxPages int) *ScheduleDecider {
	decider := NewScheduleDecider(VideosEndpoint{BaseURL: "https://api.example.test", PageSize: 20}, maxPages, nil)
	n := 0
	decider.newTag = func() string {
		n++
		return fmt.Sprintf("tag-%d", n)
	}
	return decider
}

func failureOf(t *testing.T, cmds []domain.Command) Failure {
	t.Helper()
	require.Len(t, cmds, 1)
	require.Equal(t, domain.CommandError, cmds[0].Kind)
	var failure Failure
	require.NoError(t, json.Unmarshal(cmds[0].Payload, &failure))
	return failure
}

func TestScheduleDeciderRequestsArchivedVideos(t *testing.T) {
	t.Parallel()

	session := newTestDecider(1).Start("state-1")
	cmds := session.Handle(domain.InboundInvocationEvent("state-1", json.RawMessage(`{"user_id":" 42 "}`)))

	require.Len(t, cmds, 1)
	cmd := cmds[0]
	assert.Equal(t, domain.CommandHTTPRequest, cmd.Kind)
	assert.Equal(t, domain.StateToken("state-1"), cmd.State)
	require.NotNil(t, cmd.Request)
	assert.Equal(t, "tag-1", cmd.Request.Tag)
	assert.Equal(t, "api.example.test", cmd.Request.Host)
	assert.Equal(t, "/helix/videos", cmd.Request.Path)
	assert.Equal(t, "42", cmd.Request.Query.Get("user_id"))
	assert.Equal(t, "archive", cmd.Request.Query.Get("type"))
	assert.Equal(t, "20", cmd.Request.Query.Get("first"))
	assert.True(t, cmd.Request.Authenticated)
}

func TestScheduleDeciderReadsUserFromQueryString(t *testing.T) {
	t.Parallel()

	session := newTestDecider(1).Start("s")
	cmds := session.Handle(domain.InboundInvocationEvent("s", json.RawMessage(`{"queryStringParameters":{"user_id":"99"}}`)))

	require.Len(t, cmds, 1)
	assert.Equal(t, "99", cmds[0].Request.Query.Get("user_id"))
}

func TestScheduleDeciderRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	for name, payload := range map[string]string{
		"empty object": `{}`,
		"not json":     `user_id=1`,
		"blank user":   `{"user_id":"  "}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			session := newTestDecider(1).Start("s")
			failure := failureOf(t, session.Handle(domain.InboundInvocationEvent("s", json.RawMessage(payload))))
			assert.Equal(t, "invalid_payload", failure.Kind)
		})
	}
}

func TestScheduleDeciderEmitsEntriesOnLastPage(t *testing.T) {
	t.Parallel()

	session := newTestDecider(3).Start("s")
	session.Handle(domain.InboundInvocationEvent("s", json.RawMessage(`{"user_id":"1"}`)))

	cmds := session.Handle(domain.HTTPResponseEvent("s", "tag-1", 200,
		[]byte(`{"data":[{"created_at":"t1","duration":"1h","type":"archive"},{"created_at":"t2","duration":"5m","type":"highlight"}]}`)))

	require.Len(t, cmds, 2)
	assert.Equal(t, domain.CommandLog, cmds[0].Kind)
	assert.Equal(t, domain.CommandSuccess, cmds[1].Kind)
	assert.JSONEq(t, `[{"created_at":"t1","duration":"1h"}]`, string(cmds[1].Payload))
}

func TestScheduleDeciderEmptyResultIsEmptyArray(t *testing.T) {
	t.Parallel()

	session := newTestDecider(1).Start("s")
	session.Handle(domain.InboundInvocationEvent("s", json.RawMessage(`{"user_id":"1"}`)))

	cmds := session.Handle(domain.HTTPResponseEvent("s", "tag-1", 200, []byte(`{"data":[]}`)))

	require.Len(t, cmds, 2)
	assert.Equal(t, "[]", string(cmds[1].Payload))
}

func TestScheduleDeciderFollowsCursorWithFreshTag(t *testing.T) {
	t.Parallel()

	session := newTestDecider(2).Start("s")
	session.Handle(domain.InboundInvocationEvent("s", json.RawMessage(`{"user_id":"1"}`)))

	cmds := session.Handle(domain.HTTPResponseEvent("s", "tag-1", 200,
		[]byte(`{"data":[{"created_at":"t1","duration":"1h","type":"archive"}],"pagination":{"cursor":"next"}}`)))
	require.Len(t, cmds, 1)
	require.Equal(t, domain.CommandHTTPRequest, cmds[0].Kind)
	assert.Equal(t, "tag-2", cmds[0].Request.Tag)
	assert.Equal(t, "next", cmds[0].Request.Query.Get("after"))

	// The second page reaches max pages, so its cursor is not followed.
	cmds = session.Handle(domain.HTTPResponseEvent("s", "tag-2", 200,
		[]byte(`{"data":[{"created_at":"t2","duration":"2h","type":"archive"}],"pagination":{"cursor":"again"}}`)))
	require.Len(t, cmds, 2)
	assert.JSONEq(t, `[{"created_at":"t1","duration":"1h"},{"created_at":"t2","duration":"2h"}]`, string(cmds[1].Payload))
}

func TestScheduleDeciderIgnoresStaleTags(t *testing.T) {
	t.Parallel()

	session := newTestDecider(1).Start("s")
	session.Handle(domain.InboundInvocationEvent("s", json.RawMessage(`{"user_id":"1"}`)))

	assert.Empty(t, session.Handle(domain.HTTPResponseEvent("s", "tag-other", 200, []byte(`{"data":[]}`))))
	assert.Empty(t, session.Handle(domain.BadStatusEvent("s", "tag-other", 500, nil)))

	cmds := session.Handle(domain.HTTPResponseEvent("s", "tag-1", 200, []byte(`{"data":[]}`)))
	assert.Len(t, cmds, 2)
}

func TestScheduleDeciderReportsFailureEvents(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		event  domain.Event
		kind   domain.EventKind
		status int
	}{
		"bad status": {
			event:  domain.BadStatusEvent("s", "tag-1", 404, []byte(`{"message":"not found"}`)),
			kind:   domain.EventBadStatus,
			status: 404,
		},
		"network": {
			event: domain.NetworkErrorEvent("s", "tag-1", domain.ErrTransport),
			kind:  domain.EventNetworkError,
		},
		"bad body": {
			event: domain.BadBodyEvent("s", "tag-1", domain.ErrBodyParse),
			kind:  domain.EventBadBody,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			session := newTestDecider(1).Start("s")
			session.Handle(domain.InboundInvocationEvent("s", json.RawMessage(`{"user_id":"1"}`)))

			failure := failureOf(t, session.Handle(tc.event))
			assert.Equal(t, string(tc.kind), failure.Kind)
			assert.Equal(t, "tag-1", failure.Tag)
			assert.Equal(t, tc.status, failure.Status)
		})
	}
}

func TestScheduleDeciderUndecodablePageIsBadBody(t *testing.T) {
	t.Parallel()

	session := newTestDecider(1).Start("s")
	session.Handle(domain.InboundInvocationEvent("s", json.RawMessage(`{"user_id":"1"}`)))

	failure := failureOf(t, session.Handle(domain.HTTPResponseEvent("s", "tag-1", 200, []byte(`{"pagination":{}}`))))
	assert.Equal(t, string(domain.EventBadBody), failure.Kind)
}

func TestScheduleDeciderIgnoresEventsAfterCompletion(t *testing.T) {
	t.Parallel()

	session := newTestDecider(1).Start("s")
	session.Handle(domain.InboundInvocationEvent("s", json.RawMessage(`{}`)))

	assert.Empty(t, session.Handle(domain.HTTPResponseEvent("s", "tag-1", 200, []byte(`{"data":[]}`))))
	assert.Empty(t, session.Handle(domain.InboundInvocationEvent("s", json.RawMessage(`{"user_id":"1"}`))))
}

func TestScheduleDeciderDecryptionErrorFails(t *testing.T) {
	t.Parallel()

	session := newTestDecider(1).Start("s")
	session.Handle(domain.InboundInvocationEvent("s", json.RawMessage(`{"user_id":"1"}`)))

	failure := failureOf(t, session.Handle(domain.DecryptionErrorEvent("s", &domain.DecryptionError{Index: 1, Err: domain.ErrDecryptUnavailable})))
	assert.Equal(t, string(domain.EventDecryptionError), failure.Kind)
	assert.NotEmpty(t, failure.Message)
}

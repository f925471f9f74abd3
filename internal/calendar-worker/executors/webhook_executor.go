package executors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"studio-scheduler-service/internal/models"
)

// WebhookExecutor forwards commands to an HTTP calendar bridge. Sync commands
// are POSTed to <base>/events, deletes go to DELETE <base>/events/<id>.
type WebhookExecutor struct {
	BaseURL string
	Timeout time.Duration
	client  *client.Client
}

type bridgeResponse struct {
	EventID    string `json:"event_id"`
	CalendarID string `json:"calendar_id"`
	Error      string `json:"error"`
}

func NewWebhookExecutor(baseURL string, timeout time.Duration) (*WebhookExecutor, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("calendar bridge url is required")
	}
	c, err := client.NewClient(client.WithDialTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("create hertz client: %w", err)
	}
	return &WebhookExecutor{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: timeout, client: c}, nil
}

func (e *WebhookExecutor) Execute(ctx context.Context, cmd models.CalendarCommand) (Outcome, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	switch cmd.Type {
	case models.CommandSyncTask:
		body, err := json.Marshal(cmd)
		if err != nil {
			return Outcome{}, err
		}
		req.SetRequestURI(e.BaseURL + "/events")
		req.SetMethod(consts.MethodPost)
		req.Header.SetContentTypeBytes([]byte("application/json"))
		req.SetBody(body)
	case models.CommandDeleteEvent:
		if cmd.GoogleEventID == "" {
			return Outcome{}, fmt.Errorf("delete command %s has no event id", cmd.CommandID)
		}
		uri := e.BaseURL + "/events/" + cmd.GoogleEventID
		if cmd.GoogleCalendarID != "" {
			uri += "?calendar_id=" + cmd.GoogleCalendarID
		}
		req.SetRequestURI(uri)
		req.SetMethod(consts.MethodDelete)
	default:
		return Outcome{}, fmt.Errorf("unsupported command type %q", cmd.Type)
	}

	if err := e.client.DoTimeout(ctx, req, resp, e.Timeout); err != nil {
		return Outcome{}, fmt.Errorf("calendar bridge request: %w", err)
	}

	var out bridgeResponse
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &out); err != nil && resp.StatusCode() < 300 {
			return Outcome{}, fmt.Errorf("decode calendar bridge response: %w", err)
		}
	}
	if code := resp.StatusCode(); code >= 300 {
		if code == consts.StatusNotFound && cmd.Type == models.CommandDeleteEvent {
			return Outcome{GoogleEventID: cmd.GoogleEventID, GoogleCalendarID: cmd.GoogleCalendarID}, nil
		}
		msg := out.Error
		if msg == "" {
			msg = string(resp.Body())
		}
		return Outcome{}, fmt.Errorf("calendar bridge returned %d: %s", code, msg)
	}
	if cmd.Type == models.CommandDeleteEvent {
		return Outcome{GoogleEventID: cmd.GoogleEventID, GoogleCalendarID: cmd.GoogleCalendarID}, nil
	}
	if out.EventID == "" {
		return Outcome{}, fmt.Errorf("calendar bridge returned no event id")
	}
	return Outcome{GoogleEventID: out.EventID, GoogleCalendarID: out.CalendarID}, nil
}

package application

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/bnema/schedule-from-videos/internal/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScheduleDecider fetches archived videos for the requested user and answers
// with their schedule entries.
type ScheduleDecider struct {
	videos   VideosEndpoint
	maxPages int
	logger   *zap.Logger
	newTag   func() string
}

var _ ports.Decider = (*ScheduleDecider)(nil)

func NewScheduleDecider(videos VideosEndpoint, maxPages int, logger *zap.Logger) *ScheduleDecider {
	if maxPages <= 0 {
		maxPages = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleDecider{
		videos:   videos,
		maxPages: maxPages,
		logger:   logger,
		newTag:   uuid.NewString,
	}
}

func (d *ScheduleDecider) Start(state domain.StateToken) ports.Decision {
	return &scheduleSession{
		decider: d,
		state:   state,
		logger:  d.logger.With(zap.String("state", string(state))),
	}
}

// ScheduleRequest is the invocation payload. API Gateway proxy events carry the
// user id in their query string instead.
type ScheduleRequest struct {
	UserID string `json:"user_id"`

	QueryStringParameters map[string]string `json:"queryStringParameters,omitempty"`
}

func (r ScheduleRequest) user() string {
	if id := strings.TrimSpace(r.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(r.QueryStringParameters["user_id"])
}

// Failure is the Error payload shape.
type Failure struct {
	Kind    string          `json:"kind"`
	Tag     string          `json:"tag,omitempty"`
	Status  int             `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

type scheduleSession struct {
	decider *ScheduleDecider
	state   domain.StateToken
	logger  *zap.Logger

	userID  string
	tag     string
	pages   int
	entries []domain.ScheduleEntry
	done    bool
}

func (s *scheduleSession) Handle(event domain.Event) []domain.Command {
	if s.done {
		s.logger.Debug("ignoring event after completion", zap.Stringer("event", event))
		return nil
	}

	switch event.Kind {
	case domain.EventInboundInvocation:
		return s.start(event.Payload)

	case domain.EventHTTPResponse:
		if !s.expects(event) {
			return nil
		}
		return s.page(event)

	case domain.EventBadStatus, domain.EventBadBody, domain.EventNetworkError:
		if !s.expects(event) {
			return nil
		}
		return s.fail(Failure{
			Kind:    string(event.Kind),
			Tag:     event.Tag,
			Status:  event.Status,
			Message: event.Error,
			Body:    event.Body,
		})

	case domain.EventDecryptionError:
		return s.fail(Failure{Kind: string(event.Kind), Message: event.Error})

	default:
		s.logger.Debug("ignoring event", zap.Stringer("event", event))
		return nil
	}
}

func (s *scheduleSession) start(payload json.RawMessage) []domain.Command {
	var req ScheduleRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return s.fail(Failure{Kind: "invalid_payload", Message: err.Error()})
		}
	}
	s.userID = req.user()
	if s.userID == "" {
		return s.fail(Failure{Kind: "invalid_payload", Message: "user_id is required"})
	}
	s.entries = []domain.ScheduleEntry{}
	s.logger.Info("fetching schedule", zap.String("user_id", s.userID))
	return s.request("")
}

func (s *scheduleSession) request(after string) []domain.Command {
	s.tag = s.decider.newTag()
	req, err := s.decider.videos.Request(s.tag, s.userID, after)
	if err != nil {
		return s.fail(Failure{Kind: "invalid_request", Message: err.Error()})
	}
	return []domain.Command{domain.HTTPRequestCommand(s.state, req)}
}

func (s *scheduleSession) page(event domain.Event) []domain.Command {
	page, err := DecodeVideoPage(event.Body)
	if err != nil {
		return s.fail(Failure{Kind: string(domain.EventBadBody), Tag: event.Tag, Message: err.Error()})
	}
	s.pages++
	s.entries = append(s.entries, domain.ScheduleFromVideos(page.Data)...)

	if cursor := page.Pagination.Cursor; cursor != "" && s.pages < s.decider.maxPages {
		s.logger.Debug("following cursor", zap.Int("pages", s.pages))
		return s.request(cursor)
	}

	s.done = true
	payload, err := json.Marshal(s.entries)
	if err != nil {
		return s.fail(Failure{Kind: "encode", Message: err.Error()})
	}
	return []domain.Command{
		domain.LogCommand(s.state, "info", "schedule ready"),
		domain.SuccessCommand(s.state, payload),
	}
}

func (s *scheduleSession) expects(event domain.Event) bool {
	if event.Tag != s.tag {
		s.logger.Warn("event with unknown tag", zap.Stringer("event", event))
		return false
	}
	return true
}

func (s *scheduleSession) fail(f Failure) []domain.Command {
	s.done = true
	payload, err := json.Marshal(f)
	if err != nil {
		payload, _ = json.Marshal(Failure{Kind: f.Kind, Message: errors.Join(errors.New(f.Message), err).Error()})
	}
	return []domain.Command{domain.ErrorCommand(s.state, payload)}
}

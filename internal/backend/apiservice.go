package backend

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/slipledger/server/internal/backend/database"
	"github.com/slipledger/server/internal/backend/dedup"
	"github.com/slipledger/server/internal/backend/messaging"
	"github.com/slipledger/server/internal/backend/slip"
	"github.com/slipledger/server/internal/core"
)

// WebhookParser verifies and translates an inbound webhook request.
type WebhookParser interface {
	ParseRequest(req *http.Request) ([]messaging.InboundEvent, error)
}

type APIService struct {
	coreService *core.CoreService
	parser      WebhookParser
	workflow    *slip.Workflow
	guard       *dedup.Guard
}

func NewAPIService(coreService *core.CoreService, parser WebhookParser, workflow *slip.Workflow, guard *dedup.Guard) *APIService {
	return &APIService{
		coreService: coreService,
		parser:      parser,
		workflow:    workflow,
		guard:       guard,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/callback", s.callbackHandler)
	e.GET("/api/v1/slips", s.listSlipsHandler)
}

// callbackHandler is the webhook ingress. An invalid signature is a client
// error with no side effects; valid events are processed synchronously to
// completion before the response is returned.
func (s *APIService) callbackHandler(c echo.Context) error {
	events, err := s.parser.ParseRequest(c.Request())
	if err != nil {
		if errors.Is(err, messaging.ErrInvalidSignature) {
			log.Warn().Str("remote_ip", c.RealIP()).Msg("webhook signature verification failed")
			return c.String(http.StatusBadRequest, "invalid signature")
		}
		log.Warn().Err(err).Msg("failed to parse webhook request")
		return c.String(http.StatusBadRequest, "invalid request")
	}

	ctx := c.Request().Context()
	for _, event := range events {
		seen, err := s.guard.Seen(ctx, event.ID)
		if err != nil {
			// A broken guard must not drop events; duplicates are the
			// lesser problem.
			log.Warn().Err(err).Str("event_id", event.ID).Msg("redelivery guard unavailable")
		}
		if seen {
			log.Info().Str("event_id", event.ID).Msg("skipping redelivered event")
			continue
		}

		switch {
		case event.Image != nil:
			err = s.workflow.HandleImage(ctx, *event.Image)
		case event.Text != nil:
			err = s.workflow.HandleText(ctx, *event.Text)
		}
		if err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Msg("failed to process webhook event")
			return c.String(http.StatusInternalServerError, "failed to process event")
		}
	}

	return c.String(http.StatusOK, "OK")
}

type listSlipsQuery struct {
	SenderID string `query:"senderId"`
	Limit    int    `query:"limit" validate:"gte=0"`
}

// listSlipsHandler returns slip records as JSON, most recent first.
func (s *APIService) listSlipsHandler(c echo.Context) error {
	var query listSlipsQuery
	if err := c.Bind(&query); err != nil {
		return c.String(http.StatusBadRequest, "invalid query parameters")
	}
	if err := c.Validate(&query); err != nil {
		return err
	}

	records, err := s.coreService.AllSlips()
	if err != nil {
		log.Error().Err(err).Msg("failed to list slip records")
		return c.String(http.StatusInternalServerError, "failed to list records")
	}

	filtered := make([]*database.SlipRecord, 0, len(records))
	for _, record := range records {
		if query.SenderID != "" && record.SenderID != query.SenderID {
			continue
		}
		filtered = append(filtered, record)
		if query.Limit > 0 && len(filtered) == query.Limit {
			break
		}
	}

	return c.JSON(http.StatusOK, filtered)
}

package http

import (
	"context"
	"strings"
	"time"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/input"
	"codex-gateway/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StatsProvider reports the admission controller's occupancy.
type StatsProvider interface {
	Stats() domain.AdmissionStats
}

// HTTPHandler struct - Primary/Driving adapter for HTTP
type HTTPHandler struct {
	ctx         context.Context
	completions input.CompletionService
	models      input.ModelService
	planner     input.RequestPlanner
	stats       StatsProvider
	validator   validator.Validator
}

// New func - Creates new HTTP handler. Executions started by the handler are
// cancelled when ctx is done.
func New(
	ctx context.Context,
	completions input.CompletionService,
	models input.ModelService,
	planner input.RequestPlanner,
	stats StatsProvider,
) *HTTPHandler {
	return &HTTPHandler{
		ctx:         ctx,
		completions: completions,
		models:      models,
		planner:     planner,
		stats:       stats,
		validator:   validator.New(),
	}
}

// HealthCheck func
// HealthCheck godoc
// @Summary Health check
// @Description Reports the codex worker pool occupancy
// @Tags Health
// @Produce json
// @Success 200 {object} ResponseBody
// @Failure 503 {object} ResponseBody
// @Router /health [get]
func (hdl *HTTPHandler) HealthCheck(c *fiber.Ctx) error {
	stats := hdl.stats.Stats()
	health := domain.HealthStatus{
		Status:      "ok",
		MaxParallel: stats.Limit,
		Running:     stats.Running,
		Waiting:     stats.Waiting,
		Accepting:   stats.Accepting,
	}
	if !stats.Accepting {
		health.Status = "shutting_down"
		return c.Status(fiber.StatusServiceUnavailable).JSON(ResponseBody{
			Status: Status{Code: fiber.StatusServiceUnavailable, Message: []string{"Shutting down"}},
			Data:   health,
		})
	}
	return c.Status(fiber.StatusOK).JSON(ResponseBody{Status: Success, Data: health})
}

// ListModels godoc
// @Summary List models
// @Description Lists the served models and their reasoning-effort aliases
// @Tags OpenAI
// @Produce json
// @Success 200 {object} ModelListResponse
// @Security BearerAuth
// @Router /v1/models [get]
func (hdl *HTTPHandler) ListModels(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(ModelListResponse{
		Object: "list",
		Data:   hdl.models.ListModels(),
	})
}

// ChatCompletions godoc
// @Summary Create chat completion
// @Description Runs the conversation through codex exec. With stream=true the answer is sent as server-sent events.
// @Tags OpenAI
// @Accept application/json
// @Produce json
// @Produce text/event-stream
// @param ChatCompletion body ChatCompletionRequest true "ChatCompletion"
// @Success 200 {object} ChatCompletionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Security BearerAuth
// @Router /v1/chat/completions [post]
func (hdl *HTTPHandler) ChatCompletions(c *fiber.Ctx) error {
	var request ChatCompletionRequest
	if ok, err := hdl.parse(c, &request); !ok {
		return err
	}

	id := "chatcmpl-" + newID()
	plan, err := hdl.planner.Plan(request.toDomain(id))
	if err != nil {
		return hdl.fail(c, id, err)
	}
	model := hdl.displayModel(request.Model)
	created := time.Now().Unix()

	logrus.WithFields(logrus.Fields{
		"request_id":     id,
		"model":          model,
		"resolved_model": plan.Options.Model,
		"stream":         request.Stream,
		"message_count":  len(request.Messages),
	}).Info("chat.completions request started")

	if !request.Stream {
		// fasthttp does not report a batch client hanging up; the deadline and shutdown still apply
		result, err := hdl.completions.Complete(hdl.ctx, plan)
		if err != nil {
			return hdl.fail(c, id, err)
		}
		if !result.Succeeded() {
			return hdl.fail(c, id, result.Err())
		}
		return c.Status(fiber.StatusOK).JSON(newChatCompletion(id, model, created, result.Text))
	}

	ctx, cancel := context.WithCancel(hdl.ctx)
	events, err := hdl.completions.Stream(ctx, plan)
	if err != nil {
		cancel()
		return hdl.fail(c, id, err)
	}

	streamEvents(c, events, cancel, func(sse sseWriter, ev domain.StreamEvent) error {
		switch ev.Kind {
		case domain.EventStarted:
			return sse.data(newChatChunk(id, model, created, ChunkDelta{Role: "assistant"}, nil))
		case domain.EventDelta:
			if ev.Fragment.Text == "" {
				return nil
			}
			return sse.data(newChatChunk(id, model, created, ChunkDelta{Content: ev.Fragment.Text}, nil))
		case domain.EventDone:
			stop := "stop"
			return sse.data(newChatChunk(id, model, created, ChunkDelta{}, &stop))
		case domain.EventErrored:
			_, body := toHTTPError(eventError(ev))
			return sse.data(body)
		}
		return nil
	})
	return nil
}

// Responses godoc
// @Summary Create response
// @Description Minimal Responses API. With stream=true the answer is sent as response.* server-sent events.
// @Tags OpenAI
// @Accept application/json
// @Produce json
// @Produce text/event-stream
// @param Response body ResponsesRequest true "Response"
// @Success 200 {object} ResponsesObject
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Security BearerAuth
// @Router /v1/responses [post]
func (hdl *HTTPHandler) Responses(c *fiber.Ctx) error {
	var request ResponsesRequest
	if ok, err := hdl.parse(c, &request); !ok {
		return err
	}

	id := "resp_" + newID()
	msgID := "msg_" + newID()
	completion, err := request.toDomain(id)
	if err != nil {
		return hdl.fail(c, id, err)
	}
	plan, err := hdl.planner.Plan(completion)
	if err != nil {
		return hdl.fail(c, id, err)
	}
	model := hdl.displayModel(request.Model)
	created := time.Now().Unix()

	logrus.WithFields(logrus.Fields{
		"request_id":     id,
		"model":          model,
		"resolved_model": plan.Options.Model,
		"stream":         request.Stream,
		"message_count":  len(completion.Messages),
	}).Info("responses request started")

	if !request.Stream {
		result, err := hdl.completions.Complete(hdl.ctx, plan)
		if err != nil {
			return hdl.fail(c, id, err)
		}
		if !result.Succeeded() {
			return hdl.fail(c, id, result.Err())
		}
		return c.Status(fiber.StatusOK).JSON(newResponsesObject(id, msgID, model, created, "completed", result.Text))
	}

	ctx, cancel := context.WithCancel(hdl.ctx)
	events, err := hdl.completions.Stream(ctx, plan)
	if err != nil {
		cancel()
		return hdl.fail(c, id, err)
	}

	streamEvents(c, events, cancel, func(sse sseWriter, ev domain.StreamEvent) error {
		switch ev.Kind {
		case domain.EventStarted:
			return sse.event("response.created", newResponsesObject(id, msgID, model, created, "in_progress", ""))
		case domain.EventDelta:
			if ev.Fragment.Text == "" {
				return nil
			}
			return sse.event("response.output_text.delta", ResponsesDelta{ID: id, Delta: ev.Fragment.Text})
		case domain.EventDone:
			if err := sse.event("response.output_text.done", ResponsesTextDone{ID: id, Text: ev.Text}); err != nil {
				return err
			}
			return sse.event("response.completed", newResponsesObject(id, msgID, model, created, "completed", ev.Text))
		case domain.EventErrored:
			_, body := toHTTPError(eventError(ev))
			return sse.event("response.error", ResponsesError{ID: id, Error: body.Error})
		}
		return nil
	})
	return nil
}

// parse decodes and validates the JSON body. When it reports false the 400
// response has already been written and err is the write result.
func (hdl *HTTPHandler) parse(c *fiber.Ctx, out interface{}) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		logrus.Errorln(err)
		return false, c.Status(fiber.StatusBadRequest).JSON(errorResponse("invalid JSON body: "+err.Error(), ErrorTypeInvalidRequest, ""))
	}
	if err := hdl.validator.ValidateStruct(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(errorResponse(strings.Join(validator.Messages(err), "; "), ErrorTypeInvalidRequest, ""))
	}
	return true, nil
}

func (hdl *HTTPHandler) fail(c *fiber.Ctx, id string, err error) error {
	status, body := toHTTPError(err)
	log := logrus.WithFields(logrus.Fields{"request_id": id, "status": status})
	if status >= fiber.StatusInternalServerError {
		log.WithError(err).Warn("Request failed")
	} else {
		log.WithError(err).Info("Request rejected")
	}
	return c.Status(status).JSON(body)
}

func (hdl *HTTPHandler) displayModel(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	return hdl.models.DefaultModel()
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

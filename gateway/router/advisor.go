package router

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/wricardo/wsgateway/gateway/envelope"
	"github.com/wricardo/wsgateway/gateway/failure"
)

// Renderer turns a tagged error into a client envelope.
type Renderer func(*failure.Error) (*envelope.Response, error)

// Rule binds a Renderer to exactly one Kind.
type Rule struct {
	Kind   failure.Kind
	Render Renderer
}

// Advisor converts handler errors into client envelopes. Resolve never
// fails: unregistered kinds, untagged errors and misbehaving renderers all
// produce the generic server error envelope.
type Advisor struct {
	renderers map[failure.Kind]Renderer
	logger    *slog.Logger
}

// NewAdvisor builds an Advisor from rules. A later rule for the same kind
// replaces an earlier one.
func NewAdvisor(logger *slog.Logger, rules ...Rule) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	renderers := make(map[failure.Kind]Renderer, len(rules))
	for _, rule := range rules {
		renderers[rule.Kind] = rule.Render
	}
	return &Advisor{
		renderers: renderers,
		logger:    logger.With("component", "advisor"),
	}
}

// DefaultAdvisor maps validation failures to BAD_REQUEST and registration,
// group and external tool failures to ERROR. Transport and group-exists
// failures are left unregistered.
func DefaultAdvisor(logger *slog.Logger) *Advisor {
	return NewAdvisor(logger,
		Rule{Kind: failure.KindValidation, Render: RenderBadRequest},
		Rule{Kind: failure.KindRegistration, Render: RenderError},
		Rule{Kind: failure.KindGroup, Render: RenderError},
		Rule{Kind: failure.KindExternalTool, Render: RenderError},
	)
}

// RenderError renders an ERROR envelope carrying the error text.
func RenderError(err *failure.Error) (*envelope.Response, error) {
	return envelope.Error(err.Error()), nil
}

// RenderBadRequest renders a BAD_REQUEST envelope carrying the error text.
func RenderBadRequest(err *failure.Error) (*envelope.Response, error) {
	return envelope.BadRequest(err.Error()), nil
}

// Resolve returns the envelope for err.
func (a *Advisor) Resolve(err error) *envelope.Response {
	var tagged *failure.Error
	if !errors.As(err, &tagged) {
		a.logger.Error("unhandled error", "error", err)
		return envelope.ServerError()
	}

	render, ok := a.renderers[tagged.Kind()]
	if !ok {
		a.logger.Error("no renderer for error kind", "kind", tagged.Kind(), "error", err)
		return envelope.ServerError()
	}

	resp, renderErr := a.render(render, tagged)
	if renderErr != nil || resp == nil {
		a.logger.Error("renderer failed", "kind", tagged.Kind(), "error", err, "render_error", renderErr)
		return envelope.ServerError()
	}
	return resp
}

func (a *Advisor) render(render Renderer, err *failure.Error) (resp *envelope.Response, renderErr error) {
	defer func() {
		if p := recover(); p != nil {
			resp = nil
			renderErr = fmt.Errorf("renderer panicked: %v", p)
		}
	}()
	return render(err)
}

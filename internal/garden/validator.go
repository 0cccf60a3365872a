package garden

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/routing"
)

var ErrInvalidRequest = errors.New("garden: invalid request")

// RequestValidator checks a request before it is persisted and forwarded.
type RequestValidator struct{}

var _ routing.RequestValidator = RequestValidator{}

func (RequestValidator) ValidateRequest(_ context.Context, req *model.Request) (*model.Request, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	out := *req
	out.Namespace = strings.TrimSpace(out.Namespace)
	out.System = strings.TrimSpace(out.System)
	out.SystemVersion = strings.TrimSpace(out.SystemVersion)
	out.Command = strings.TrimSpace(out.Command)

	var missing []string
	if out.Namespace == "" {
		missing = append(missing, "namespace")
	}
	if out.System == "" {
		missing = append(missing, "system")
	}
	if out.SystemVersion == "" {
		missing = append(missing, "system_version")
	}
	if out.Command == "" {
		missing = append(missing, "command")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	if out.Status == "" {
		out.Status = model.RequestStatusCreated
	}
	if out.Parameters == nil {
		out.Parameters = map[string]any{}
	}
	return &out, nil
}

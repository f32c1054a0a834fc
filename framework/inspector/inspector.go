package inspector

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/km-arc/go-wiring/framework/container"
	"github.com/km-arc/go-wiring/framework/definitions"
	gohttp "github.com/km-arc/go-wiring/framework/http"
	"github.com/km-arc/go-wiring/framework/routing"
	"github.com/km-arc/go-wiring/framework/validation"
)

// Inspector exposes a container's definitions and resolution over HTTP.
type Inspector struct {
	container *container.Container
	loader    *definitions.Loader
	logger    *slog.Logger
}

// New creates an Inspector for c. loader backs POST /definitions/check and
// may be nil, in which case a default loader is used.
func New(c *container.Container, loader *definitions.Loader) *Inspector {
	logger := c.Logger().With("component", "inspector")
	if loader == nil {
		loader = definitions.NewLoader(logger)
	}
	return &Inspector{container: c, loader: loader, logger: logger}
}

// Register adds the inspector routes to r.
func (i *Inspector) Register(r *routing.Router) {
	r.Get("/services", i.listServices)
	r.Get("/services/{id}", i.showService)
	r.Get("/parameters", i.listParameters)
	r.Get("/tags/{tag}", i.listTagged)
	r.Get("/resolve/{id}", i.resolve)
	r.Post("/definitions/check", i.checkDefinitions)
}

// Handler returns a standalone router serving the inspector routes.
func (i *Inspector) Handler() http.Handler {
	r := routing.New(i.logger)
	i.Register(r)
	return r
}

// ── Handlers ─────────────────────────────────────────────────────────────────

func (i *Inspector) listServices(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w)

	ids := i.container.Services(container.ServiceFilter{
		Pattern: req.Query("pattern"),
		Tag:     req.Query("tag"),
		Public:  req.QueryBool("public", false),
	})
	out := make([]container.ServiceInfo, 0, len(ids))
	for _, id := range ids {
		info, err := i.container.Describe(id)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	res.Success(out)
}

func (i *Inspector) showService(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w)

	info, err := i.container.Describe(req.RouteParam("id"))
	if err != nil {
		i.fail(res, err)
		return
	}
	res.Success(info)
}

func (i *Inspector) listParameters(w http.ResponseWriter, _ *http.Request) {
	gohttp.NewResponse(w).Success(i.container.Parameters())
}

func (i *Inspector) listTagged(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w)

	tagged := i.container.ServicesTags(req.RouteParam("tag"))
	if tagged == nil {
		tagged = []container.TaggedService{}
	}
	res.Success(tagged)
}

func (i *Inspector) resolve(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w)
	id := req.RouteParam("id")

	v, err := i.container.Get(r.Context(), id)
	if err != nil {
		i.fail(res, err)
		return
	}
	res.Success(gohttp.Envelope{"id": id, "type": fmt.Sprintf("%T", v)})
}

func (i *Inspector) checkDefinitions(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w)

	body, err := req.Body()
	if err != nil {
		res.BadRequest(err.Error())
		return
	}
	defs, err := i.loader.Parse(body, req.Query("origin", "request.yml"))
	if err != nil {
		var bag *validation.Errors
		if errors.As(err, &bag) {
			res.ValidationError(bag)
			return
		}
		res.BadRequest(err.Error())
		return
	}

	ids := make([]string, 0, len(defs.Services))
	for _, sd := range defs.Services {
		ids = append(ids, sd.ID)
	}
	res.Success(gohttp.Envelope{"parameters": len(defs.Parameters), "services": ids})
}

// ── Errors ───────────────────────────────────────────────────────────────────

// Status maps a container error to an HTTP status from its outermost kind.
func Status(err error) int {
	var re *container.ResolutionError
	if !errors.As(err, &re) {
		return http.StatusInternalServerError
	}
	switch re.Kind {
	case container.ErrNotFound:
		return http.StatusNotFound
	case container.ErrAccessViolation:
		return http.StatusForbidden
	case container.ErrCyclicResolution:
		return http.StatusConflict
	case container.ErrInvalidReference:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (i *Inspector) fail(res *gohttp.Response, err error) {
	status := Status(err)
	fields := gohttp.Envelope{}
	var re *container.ResolutionError
	if errors.As(err, &re) {
		fields["kind"] = re.Kind.Error()
		fields["service"] = re.ServiceID
		if len(re.Path) > 0 {
			fields["path"] = re.Path
		}
	}
	if status >= http.StatusInternalServerError {
		i.logger.Error("Resolution failed", "error", err)
	}
	res.Problem(status, err.Error(), fields)
}

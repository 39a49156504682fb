// Package curate is the client of the Curate API.
//
// A Client owns the registry its objects are materialized with.
// Objects returned from a Client (datasets, images, annotations, slices,
// search field mappings and jobs) remember the Client, so that their
// methods like Refresh or Delete talk to the same API with the same credentials.
//
// Bulk operations (importing images or annotations, deleting images,
// updating slices) run as asynchronous jobs on the server.
// They return a *Job which can be waited with Job.Wait.
package curate

import (
	"github.com/labstack/gommon/log"
	"github.com/superb-ai/spb-curate-go/pkg/api"
	"github.com/superb-ai/spb-curate-go/pkg/configs"
	"github.com/superb-ai/spb-curate-go/pkg/geometry"
	"github.com/superb-ai/spb-curate-go/pkg/logger"
	"github.com/superb-ai/spb-curate-go/pkg/object"
	"github.com/superb-ai/spb-curate-go/pkg/transport"
	"github.com/superb-ai/spb-curate-go/pkg/utils/retry"
)

// FetchPageLimit is the page size used when all pages are iterated.
const FetchPageLimit = 100

// Config is the configuration of a Client.
type Config struct {
	Credentials configs.Credentials

	// Settings tune the bulk pipeline. Zero fields take their defaults.
	Settings configs.Settings

	// Transport sends requests, including uploads to presigned URLs.
	// If nil, the shared HTTP transport is used.
	Transport transport.Transport

	// Logger receives request logs and pipeline progress.
	// If nil, the level is read from SPB_LOG_LEVEL.
	Logger *log.Logger

	// Sleep waits between upload retries. If nil, it sleeps in real time.
	Sleep retry.Sleeper
}

// Client talks to the Curate API.
//
// It is safe for concurrent use.
type Client struct {
	requestor *api.Requestor
	transport transport.Transport
	registry  *object.Registry
	settings  configs.Settings
	logger    *log.Logger
	sleep     retry.Sleeper
}

// New creates a Client.
//
// Missing credentials are not checked here. Each request reports them
// as an authentication error, so objects can be built offline.
func New(cfg Config) (*Client, error) {
	apiBase := cfg.Credentials.APIBase
	if apiBase == "" {
		apiBase = configs.DefaultAPIBase
	}

	t := cfg.Transport
	if t == nil {
		t = transport.Shared()
	}
	l := cfg.Logger
	if l == nil {
		l = logger.FromEnv("spb-curate")
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}

	c := &Client{
		requestor: api.New(
			api.Credentials{
				AccessKey: cfg.Credentials.AccessKey,
				TeamName:  cfg.Credentials.TeamName,
				APIBase:   apiBase,
			},
			t,
			api.WithLogger(l),
		),
		transport: t,
		settings:  withDefaults(cfg.Settings),
		logger:    l,
		sleep:     sleep,
	}
	reg, err := c.newRegistry()
	if err != nil {
		return nil, err
	}
	c.registry = reg
	return c, nil
}

// FromEnv creates a Client from the environment,
// as configs.Load and configs.LoadSettings read it.
func FromEnv(options ...configs.LoadOption) (*Client, error) {
	creds, err := configs.Load(options...)
	if err != nil {
		return nil, err
	}
	settings, err := configs.LoadSettings()
	if err != nil {
		return nil, err
	}
	return New(Config{Credentials: creds, Settings: settings})
}

func withDefaults(s configs.Settings) configs.Settings {
	d := configs.DefaultSettings()
	if s.BulkBytesMax <= 0 {
		s.BulkBytesMax = d.BulkBytesMax
	}
	if s.BulkObjectMax <= 0 {
		s.BulkObjectMax = d.BulkObjectMax
	}
	if s.WaitTimeout <= 0 {
		s.WaitTimeout = d.WaitTimeout
	}
	return s
}

func (c *Client) newRegistry() (*object.Registry, error) {
	reg := object.NewRegistry()
	if err := geometry.Register(reg); err != nil {
		return nil, err
	}
	for _, k := range []struct {
		schema  *object.Schema
		factory object.Factory
	}{
		{DatasetSchema, func(o *object.Object) object.Typed { return &Dataset{Object: o, c: c} }},
		{ImageSchema, func(o *object.Object) object.Typed { return &Image{Object: o, c: c} }},
		{AnnotationSchema, func(o *object.Object) object.Typed { return &Annotation{Object: o, c: c} }},
		{SliceSchema, func(o *object.Object) object.Typed { return &Slice{Object: o, c: c} }},
		{SearchFieldMappingSchema, func(o *object.Object) object.Typed { return &SearchFieldMapping{Object: o} }},
		{JobSchema, func(o *object.Object) object.Typed { return &Job{Object: o, c: c} }},
	} {
		if err := reg.Register(k.schema, k.factory); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Registry returns the registry which objects of the client are materialized with.
func (c *Client) Registry() *object.Registry {
	return c.registry
}

// Settings returns the settings in effect.
func (c *Client) Settings() configs.Settings {
	return c.settings
}

// Materialize converts a raw value (decoded JSON) into the objects of this client.
//
// Mappings tagged with `_object_type` become their kinds.
func (c *Client) Materialize(value any) (any, error) {
	return c.registry.Materialize(value, nil)
}

package monitor

import (
	"net/http"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/health"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
	"github.com/timothyfroehlich/DisPinMap-sub000/plugins/common"
	"go.uber.org/zap"
)

// nolint: lll
type Config struct {
	PinballMapBaseURL  string        `envconfig:"PINBALLMAP_BASE_URL" default:"https://pinballmap.com/api/v1/"`
	GeocodingBaseURL   string        `envconfig:"GEOCODING_BASE_URL" default:"https://geocoding-api.open-meteo.com/v1/"`
	APIRatePerSecond   float64       `envconfig:"PINBALLMAP_RATE_PER_SECOND" default:"2"`
	APITimeout         time.Duration `envconfig:"PINBALLMAP_TIMEOUT" default:"30s"`
	DefaultRadiusMiles int           `envconfig:"DEFAULT_RADIUS_MILES" default:"25"`
	GeocodeCacheTTL    time.Duration `envconfig:"GEOCODE_CACHE_TTL" default:"168h"`
	CommandPrefix      string        `envconfig:"COMMAND_PREFIX" default:"!"`
}

type Plugin struct {
	logger   *zap.Logger
	config   Config
	storage  Storage
	registry Registry
	api      API
	notifier Notifier
	filter   *Filter
	geocache *geocodeCache
	health   health.Reporter
	now      func() time.Time

	removeHandler func()
}

// New creates a monitor plugin from its collaborators, without any Discord or database wiring
func New(
	logger *zap.Logger,
	storage Storage,
	registry Registry,
	api API,
	notifier Notifier,
) *Plugin {
	return &Plugin{
		logger:   logger,
		config:   Config{DefaultRadiusMiles: defaultRadiusMiles, CommandPrefix: "!"},
		storage:  storage,
		registry: registry,
		api:      api,
		notifier: notifier,
		filter:   NewFilter(storage),
		now:      time.Now,
	}
}

func (p *Plugin) Name() string {
	return "monitor"
}

func (p *Plugin) Start(params common.StartParameters) error {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		return errors.Wrap(err, "unable to load monitor configuration")
	}

	repo := NewRepository(params.DB)
	err = repo.Migrate()
	if err != nil {
		return errors.Wrap(err, "unable to migrate monitor tables")
	}

	client := pinballmap.NewClient(
		&http.Client{
			Timeout: config.APITimeout,
		},
		config.PinballMapBaseURL,
		config.GeocodingBaseURL,
		config.APIRatePerSecond,
	)

	*p = *New(
		params.Logger,
		repo,
		repo,
		client,
		NewDiscordNotifier(params.Session, params.Logger),
	)
	p.config = config
	p.health = params.Health
	if params.Redis != nil {
		p.geocache = newGeocodeCache(params.Redis, config.GeocodeCacheTTL)
	}

	if params.Session != nil {
		p.removeHandler = params.Session.AddHandler(p.handleMessageCreate)
	}

	return nil
}

func (p *Plugin) Stop(params common.StopParameters) error {
	if p.removeHandler != nil {
		p.removeHandler()
		p.removeHandler = nil
	}

	return nil
}

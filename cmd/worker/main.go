package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	lock "github.com/bsm/redis-lock"
	"github.com/bwmarrin/discordgo"
	"github.com/go-redis/redis"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/timothyfroehlich/DisPinMap-sub000/api"
	"github.com/timothyfroehlich/DisPinMap-sub000/metrics"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/errortracking"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/logging"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/scheduler"
	"github.com/timothyfroehlich/DisPinMap-sub000/plugins"
	"go.uber.org/zap"
)

const (
	// ServiceName is the name of the service
	ServiceName = "worker"

	runLockKey = "dispinmap:worker:poll:run-lock"
)

func main() {
	// a missing .env file is fine, the environment is used as is
	_ = godotenv.Load()

	// init config
	var config config
	err := envconfig.Process("", &config)
	if err != nil {
		panic(errors.Wrap(err, "unable to load configuration"))
	}
	config.ErrorTracking.Version = config.Hash
	config.ErrorTracking.Environment = string(config.Environment)

	// init logger
	logger, err := logging.NewLogger(config.Environment, ServiceName, config.LogLevel)
	if err != nil {
		panic(errors.Wrap(err, "unable to initialise logger"))
	}
	defer logger.Sync() // nolint: errcheck

	// init raven
	err = errortracking.Init(&config.ErrorTracking)
	if err != nil {
		logger.Error("unable to initialise errortracking",
			zap.Error(err),
		)
	}

	metrics.Init()

	// init redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
	})
	_, err = redisClient.Ping().Result()
	if err != nil {
		logger.Fatal("unable to connect to Redis",
			zap.Error(err),
		)
	}

	// init GORM
	gormDB, err := gorm.Open(config.DBDialect, config.DBDSN)
	if err != nil {
		logger.Fatal("unable to initialise GORM session",
			zap.Error(err),
		)
	}
	defer gormDB.Close()

	// init discord
	session, err := discordgo.New("Bot " + config.DiscordToken)
	if err != nil {
		logger.Fatal("unable to create Discord session",
			zap.Error(err),
		)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	ready := make(chan struct{})
	var readyOnce sync.Once
	session.AddHandler(func(_ *discordgo.Session, event *discordgo.Ready) {
		readyOnce.Do(func() {
			logger.Info("discord session is ready",
				zap.String("user", event.User.Username),
				zap.Int("guilds", len(event.Guilds)),
			)
			close(ready)
		})
	})

	// init scheduler
	sched := scheduler.NewScheduler(
		logger.With(zap.String("feature", "scheduler")),
		config.PollInterval,
		ready,
	)
	if config.RunLock {
		sched.WithLocker(func() scheduler.Locker {
			return lock.New(
				redisClient,
				runLockKey,
				&lock.Options{
					LockTimeout: config.PollInterval * 10,
					RetryCount:  0, // do not retry
				},
			)
		})
	}

	// init plugins
	started := plugins.StartPlugins(
		logger.With(zap.String("feature", "start_plugins")),
		gormDB,
		redisClient,
		session,
		sched,
	)
	for _, plugin := range started {
		sched.AddJob(plugin)
	}

	err = session.Open()
	if err != nil {
		logger.Fatal("unable to connect to Discord",
			zap.Error(err),
		)
	}

	ctx, cancelScheduler := context.WithCancel(context.Background())
	go func() {
		err := sched.Start(ctx)
		if err != nil && err != context.Canceled {
			logger.Error("scheduler exited", zap.Error(err))
		}
	}()

	// init http server
	httpRouter := api.NewRouter(ServiceName, sched)
	httpServer := api.NewHTTPServer(config.Port, httpRouter)

	go func() {
		err := httpServer.ListenAndServe()
		if err != http.ErrServerClosed {
			logger.Fatal("http server error",
				zap.Error(err),
				zap.String("feature", "http-server"),
			)
		}
	}()

	logger.Info("service is running",
		zap.Int("port", config.Port),
		zap.Duration("poll_interval", config.PollInterval),
	)

	// wait for CTRL+C to stop the service
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-quitChannel

	// shutdown features

	sched.Stop()
	cancelScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()

	plugins.StopPlugins(
		logger.With(zap.String("feature", "stop_plugins")),
		gormDB,
		redisClient,
		session,
		started,
	)

	err = session.Close()
	if err != nil {
		logger.Error("unable to close Discord session",
			zap.Error(err),
		)
	}

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error("unable to shutdown HTTP Server",
			zap.Error(err),
		)
	}
}

package plugins

import (
	"github.com/bwmarrin/discordgo"
	"github.com/go-redis/redis"
	"github.com/jinzhu/gorm"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/health"
	"github.com/timothyfroehlich/DisPinMap-sub000/plugins/common"
	"github.com/timothyfroehlich/DisPinMap-sub000/plugins/monitor"
	"go.uber.org/zap"
)

type Plugin interface {
	Name() string

	Start(common.StartParameters) error

	Stop(common.StopParameters) error

	Run(run *common.Run) error
}

var (
	PluginList = []Plugin{
		&monitor.Plugin{},
	}
)

// StartPlugins starts every plugin and returns the ones that started successfully
func StartPlugins(
	logger *zap.Logger,
	db *gorm.DB,
	redis *redis.Client,
	session *discordgo.Session,
	reporter health.Reporter,
) []Plugin {
	started := make([]Plugin, 0, len(PluginList))

	var err error
	for _, plugin := range PluginList {
		err = plugin.Start(common.StartParameters{
			Logger:  logger.With(zap.String("plugin", plugin.Name())),
			DB:      db,
			Redis:   redis,
			Session: session,
			Health:  reporter,
		})
		if err != nil {
			logger.Error("failed to start plugin",
				zap.String("plugin", plugin.Name()),
				zap.Error(err),
			)
			continue
		}

		started = append(started, plugin)
	}

	return started
}

func StopPlugins(
	logger *zap.Logger,
	db *gorm.DB,
	redis *redis.Client,
	session *discordgo.Session,
	list []Plugin,
) {
	var err error
	for _, plugin := range list {
		err = plugin.Stop(common.StopParameters{
			Logger:  logger,
			DB:      db,
			Redis:   redis,
			Session: session,
		})
		if err != nil {
			logger.Error("failed to stop plugin",
				zap.String("plugin", plugin.Name()),
				zap.Error(err),
			)
		}
	}
}

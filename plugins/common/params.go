package common

import (
	"github.com/bwmarrin/discordgo"
	"github.com/go-redis/redis"
	"github.com/jinzhu/gorm"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/health"
	"go.uber.org/zap"
)

type StartParameters struct {
	Logger  *zap.Logger
	DB      *gorm.DB
	Redis   *redis.Client
	Session *discordgo.Session
	Health  health.Reporter
}

type StopParameters struct {
	Logger  *zap.Logger
	DB      *gorm.DB
	Redis   *redis.Client
	Session *discordgo.Session
}

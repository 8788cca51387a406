package database

import (
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"dsfuzz/config"
)

func NewDBConnection(appConfig *config.AppConfig, logger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(appConfig.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	logger.Debug("connected to database")
	return db
}

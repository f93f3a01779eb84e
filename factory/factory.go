package factory

import (
	"context"
	"database/sql"
	"log"
	"sync"

	"campus-tickets-backend/config"
	"campus-tickets-backend/logger"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

var db sync.Once
var rd sync.Once

type Factory interface {
	DB(ctx context.Context) *sql.DB
	Redis(ctx context.Context) *redis.Client
}

type factory struct {
	db    *sql.DB
	redis *redis.Client
}

func NewFactory() Factory {
	return &factory{}
}

func (f *factory) DB(ctx context.Context) *sql.DB {
	var dbError error
	db.Do(func() {
		sqlDB, err := sql.Open("mysql", viper.GetString(config.DBURL))
		if err != nil {
			log.Fatal("Error creating connection pool: ", err.Error())
		}

		f.db = sqlDB
		dbError = err
	})

	if dbError != nil {
		logger.Fatalf(ctx, "Could not establish connection to the DB: %+v", dbError)
	}

	return f.db
}

func (f *factory) Redis(ctx context.Context) *redis.Client {
	rd.Do(func() {
		client := redis.NewClient(&redis.Options{
			Addr:     viper.GetString(config.RedisAddress),
			Password: viper.GetString(config.RedisPassword),
			DB:       viper.GetInt(config.RedisDB),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatalf(ctx, "redis: could not reach %s: %+v", viper.GetString(config.RedisAddress), err)
		}

		f.redis = client
	})

	return f.redis
}

package main

import (
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/config"
	"github.com/Nixie-Tech-LLC/platter/internal/mqtt"
	"github.com/Nixie-Tech-LLC/platter/internal/notify"
	"github.com/Nixie-Tech-LLC/platter/internal/redis"
)

// initNotifier builds a publisher for every configured broker. The returned
// func closes their connections.
func initNotifier(cfg *config.Config) (notify.Publisher, func()) {
	var publishers notify.Multi
	var closers []func()

	if cfg.RedisAddress != "" {
		rdb := redis.InitRedis(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		publishers = append(publishers, redis.NewPublisher(rdb))
		closers = append(closers, func() { _ = rdb.Close() })
		log.Info().Str("address", cfg.RedisAddress).Msg("Publishing schedule events to redis")
	}

	if cfg.MQTTBrokerURL != "" {
		client, err := mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			log.Error().Err(err).Msg("MQTT unavailable, displays will not get push updates")
		} else {
			publishers = append(publishers, mqtt.NewPublisher(client))
			closers = append(closers, func() { client.Disconnect(250) })
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(publishers) == 0 {
		return notify.Nop{}, closeAll
	}
	return publishers, closeAll
}

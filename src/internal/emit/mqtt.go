// FILE: wxsdr/src/internal/emit/mqtt.go
package emit

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"wxsdr/src/internal/config"
	"wxsdr/src/internal/core"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/lixenwraith/log"
)

// MQTTEmitter publishes each batch as a JSON payload to one topic, for
// setups that feed a broker next to the polling consumer
type MQTTEmitter struct {
	cfg    config.MQTTConfig
	client mqtt.Client
	logger *log.Logger

	totalBatches  atomic.Uint64
	failedBatches atomic.Uint64
	startTime     time.Time
	lastEmit      atomic.Value // time.Time
}

func NewMQTTEmitter(cfg config.MQTTConfig, logger *log.Logger) (*MQTTEmitter, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.Info("msg", "MQTT emitter connected",
		"component", "mqtt_emitter",
		"broker", cfg.Broker,
		"topic", cfg.Topic)

	e := &MQTTEmitter{
		cfg:       cfg,
		client:    client,
		logger:    logger,
		startTime: time.Now(),
	}
	e.lastEmit.Store(time.Time{})
	return e, nil
}

func (e *MQTTEmitter) Emit(b core.Batch) error {
	payload, err := json.Marshal(b)
	if err != nil {
		e.failedBatches.Add(1)
		return fmt.Errorf("marshal batch: %w", err)
	}
	token := e.client.Publish(e.cfg.Topic, byte(e.cfg.QoS), false, payload)
	token.Wait()
	if token.Error() != nil {
		e.failedBatches.Add(1)
		return fmt.Errorf("publish to topic %s: %w", e.cfg.Topic, token.Error())
	}
	e.totalBatches.Add(1)
	e.lastEmit.Store(time.Now())
	return nil
}

func (e *MQTTEmitter) Stop() {
	e.client.Disconnect(250)
	e.logger.Info("msg", "MQTT emitter stopped", "component", "mqtt_emitter")
}

func (e *MQTTEmitter) GetStats() EmitterStats {
	lastEmit, _ := e.lastEmit.Load().(time.Time)
	return EmitterStats{
		Type:          "mqtt",
		TotalBatches:  e.totalBatches.Load(),
		FailedBatches: e.failedBatches.Load(),
		StartTime:     e.startTime,
		LastEmit:      lastEmit,
	}
}

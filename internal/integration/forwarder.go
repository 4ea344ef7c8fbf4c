package integration

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/cgm-bridge/cgm-bridge-server/internal/config"
	"github.com/cgm-bridge/cgm-bridge-server/internal/models"
)

// ForwarderService relays scan results published by bridges to external
// consumers. Delivery is best effort: a failed forward is logged and
// dropped, the scan is already persisted by the server subscriber.
type ForwarderService struct {
	config config.IntegrationsConfig
	nc     *nats.Conn

	httpClient *http.Client
	mqttClient mqtt.Client
}

// NewForwarderService creates the forwarder service
func NewForwarderService(cfg config.IntegrationsConfig, nc *nats.Conn) *ForwarderService {
	s := &ForwarderService{
		config: cfg,
		nc:     nc,
	}

	if cfg.HTTP.Enabled {
		s.httpClient = &http.Client{
			Timeout: cfg.HTTP.Timeout,
		}
	}

	return s
}

// Enabled reports whether any outbound integration is configured.
func (s *ForwarderService) Enabled() bool {
	return s.config.HTTP.Enabled || s.config.MQTT.Enabled
}

// Start runs the forwarder until the context is cancelled.
func (s *ForwarderService) Start(ctx context.Context) error {
	if s.config.MQTT.Enabled {
		if err := s.connectMQTT(); err != nil {
			// Auto-reconnect keeps trying in the background
			log.Error().Err(err).Str("broker", s.config.MQTT.BrokerURL).Msg("Initial MQTT connect failed")
		}
	}

	sub, err := s.nc.Subscribe(models.ScanSubjectWildcard, s.handleScanMessage)
	if err != nil {
		return fmt.Errorf("subscribe to scan results: %w", err)
	}

	log.Info().
		Bool("http", s.config.HTTP.Enabled).
		Bool("mqtt", s.config.MQTT.Enabled).
		Msg("Integration forwarder service started")

	<-ctx.Done()

	sub.Unsubscribe()

	if s.mqttClient != nil && s.mqttClient.IsConnected() {
		s.mqttClient.Disconnect(250)
	}

	return nil
}

// handleScanMessage forwards one scan result
func (s *ForwarderService) handleScanMessage(msg *nats.Msg) {
	var scan models.ScanMessage
	if err := json.Unmarshal(msg.Data, &scan); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to parse scan message")
		return
	}

	if s.config.HTTP.Enabled {
		go s.forwardToHTTP(scan)
	}

	if s.config.MQTT.Enabled {
		go s.forwardToMQTT(scan)
	}
}

// forwardToHTTP posts a scan result to the configured endpoint
func (s *ForwarderService) forwardToHTTP(scan models.ScanMessage) {
	jsonData, err := json.Marshal(scan)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal forward data")
		return
	}

	req, err := http.NewRequest("POST", s.config.HTTP.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create HTTP request")
		return
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.config.HTTP.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error().
			Err(err).
			Str("endpoint", s.config.HTTP.Endpoint).
			Msg("Failed to forward scan to HTTP")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("endpoint", s.config.HTTP.Endpoint).
			Msg("HTTP forward failed")
	} else {
		log.Debug().
			Str("sensor_uid", scan.SensorUid).
			Str("endpoint", s.config.HTTP.Endpoint).
			Msg("Scan forwarded to HTTP")
	}
}

// forwardToMQTT publishes a scan result to the configured broker
func (s *ForwarderService) forwardToMQTT(scan models.ScanMessage) {
	if s.mqttClient == nil || !s.mqttClient.IsConnected() {
		log.Warn().Str("sensor_uid", scan.SensorUid).Msg("MQTT client not connected, dropping scan")
		return
	}

	topic := s.config.MQTT.TopicPattern
	topic = strings.ReplaceAll(topic, "{reader_id}", scan.ReaderID)
	topic = strings.ReplaceAll(topic, "{sensor_uid}", scan.SensorUid)

	jsonData, err := json.Marshal(scan)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal MQTT data")
		return
	}

	token := s.mqttClient.Publish(topic, s.config.MQTT.QoS, false, jsonData)
	if token.WaitTimeout(5 * time.Second) {
		if err := token.Error(); err != nil {
			log.Error().
				Err(err).
				Str("topic", topic).
				Msg("Failed to publish to MQTT")
		} else {
			log.Debug().
				Str("sensor_uid", scan.SensorUid).
				Str("topic", topic).
				Msg("Scan forwarded to MQTT")
		}
	} else {
		log.Error().
			Str("topic", topic).
			Msg("MQTT publish timeout")
	}
}

// connectMQTT creates the MQTT client
func (s *ForwarderService) connectMQTT() error {
	cfg := s.config.MQTT

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Str("broker", cfg.BrokerURL).Msg("MQTT client connected")
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Error().Err(err).Str("broker", cfg.BrokerURL).Msg("MQTT connection lost")
	})

	s.mqttClient = mqtt.NewClient(opts)

	token := s.mqttClient.Connect()
	if token.WaitTimeout(10 * time.Second) && token.Error() == nil {
		return nil
	}

	return token.Error()
}

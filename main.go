package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"i4.energy/across/loranode/device"
	"i4.energy/across/loranode/framer"
	"i4.energy/across/loranode/i2c"
	"i4.energy/across/loranode/join"
	"i4.energy/across/loranode/led"
	"i4.energy/across/loranode/modem"
	"i4.energy/across/loranode/mpu9250"
	"i4.energy/across/loranode/mqttbridge"
	"i4.energy/across/loranode/settings"
)

func main() {
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("console-port", "/dev/ttyS0", "Serial port of the host console")
	flag.Int("console-baud", 115200, "Baud rate of the host console")
	flag.String("radio-port", "/dev/ttyUSB0", "Serial port to connect to the LoRaWAN module")
	flag.Int("radio-baud", 115200, "Baud rate of the LoRaWAN module")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("settings", "/var/lib/loranode/settings.yaml", "Path of the persistent device settings")
	flag.Duration("idle-timeout", 500*time.Millisecond, "Console silence that completes a frame")
	flag.Int("frame-capacity", 256, "Maximum console frame length in bytes")
	flag.Int("join-retries", 6, "Join retries before giving up")
	flag.Int("adr-step-every", 1, "Lower the data rate on every Nth join retry while ADR is on")
	flag.String("i2c-bus", "", "I2C bus of the MPU-9250 gyro (e.g. /dev/i2c-1), empty to disable")
	flag.Duration("gyro-interval", 500*time.Millisecond, "Gyro sample interval")
	flag.String("led-chip", "", "GPIO chip of the join LED (e.g. gpiochip0), empty to disable")
	flag.Int("led-line", -1, "GPIO line offset of the join LED")
	flag.String("mqtt-broker", "", "MQTT broker URL, empty to disable the bridge")
	flag.String("mqtt-client-id", "loranode", "MQTT client ID")
	flag.String("mqtt-username", "", "MQTT username")
	flag.String("mqtt-password", "", "MQTT password")
	flag.String("mqtt-topic-prefix", "loranode", "Prefix of the MQTT uplink, downlink and event topics")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	store, err := settings.Open(config.SettingsPath)
	if err != nil {
		logger.Error("Failed to load settings", "error", err, "path", config.SettingsPath)
		os.Exit(1)
	}
	current := store.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	modemConfig, err := modem.NewConfigBuilder().
		WithATTimeout(5 * time.Second).
		WithInitTimeout(10 * time.Second).
		WithJoinTimeout(30 * time.Second).
		WithLogger(logger.With("component", "modem")).
		WithDialer(modem.SerialDialer{
			PortName: config.RadioPort,
			BaudRate: config.RadioBaud,
		}).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to create modem", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := m.Loop(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Modem loop stopped", "error", err)
			cancel()
		}
	}()

	console, err := modem.SerialDialer{
		PortName: config.ConsolePort,
		BaudRate: config.ConsoleBaud,
	}.Dial(ctx)
	if err != nil {
		logger.Error("Failed to open console", "error", err, "port", config.ConsolePort)
		os.Exit(1)
	}

	devConfig := device.Config{
		Console:  console,
		Radio:    m,
		Settings: store,
		Framer: framer.Config{
			Capacity:    config.FrameCapacity,
			IdleTimeout: config.IdleTimeout,
		},
		Policy:       join.StepDown{Default: current.LoRaWAN.DataRate, Every: config.ADRStepEvery},
		MaxRetries:   config.JoinRetries,
		GyroInterval: config.GyroInterval,
		Logger:       logger.With("component", "device"),
	}

	if config.I2CBus != "" {
		gyro, closeGyro, err := openGyro(config.I2CBus)
		if err != nil {
			logger.Warn("Gyro unavailable", "error", err, "bus", config.I2CBus)
		} else {
			defer closeGyro()
			devConfig.Gyro = gyro
		}
	}

	if config.LEDChip != "" {
		line, err := led.Open(config.LEDChip, config.LEDLine)
		if err != nil {
			logger.Warn("Join LED unavailable", "error", err)
		} else {
			defer line.Close()
			devConfig.LED = line
		}
	}

	var bridge *mqttbridge.Bridge
	if config.MQTTBroker != "" {
		bridge, err = mqttbridge.New(mqttbridge.Config{
			Broker:        config.MQTTBroker,
			ClientID:      config.MQTTClientID,
			Username:      config.MQTTUsername,
			Password:      config.MQTTPassword,
			UplinkTopic:   config.MQTTTopicPrefix + "/uplink",
			DownlinkTopic: config.MQTTTopicPrefix + "/downlink",
			EventTopic:    config.MQTTTopicPrefix + "/events",
			DefaultPort:   current.LoRaWAN.PassthroughPort,
			Logger:        logger.With("component", "mqtt"),
		})
		if err != nil {
			logger.Error("Failed to create MQTT bridge", "error", err)
			os.Exit(1)
		}
		devConfig.OnDownlink = bridge.PublishDownlink
		devConfig.OnJoinEvent = bridge.PublishJoinEvent
	}

	dev, err := device.New(devConfig)
	if err != nil {
		logger.Error("Failed to create device", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting LoRaWAN node", "modem", m, "settings", store.Path())

	go func() {
		if err := dev.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Device loop stopped", "error", err)
		}
		cancel()
	}()

	if bridge != nil {
		if err := bridge.Start(ctx, dev); err != nil {
			logger.Error("Failed to connect MQTT bridge", "error", err)
			os.Exit(1)
		}
	}

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Node:   dev,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal or a stopped loop
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Warn("Node stopped, shutting down")
	}
	cancel()

	if bridge != nil {
		logger.Info("Closing MQTT connection")
		bridge.Close()
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
	}
	if err := console.Close(); err != nil {
		logger.Error("Failed to close console", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
		os.Exit(1)
	}
}

// openGyro opens the MPU-9250 at its default address on bus.
func openGyro(bus string) (*mpu9250.Device, func(), error) {
	dev, err := i2c.Open(bus, mpu9250.DefaultAddress)
	if err != nil {
		return nil, nil, err
	}
	gyro, err := mpu9250.New(dev)
	if err != nil {
		dev.Close()
		return nil, nil, fmt.Errorf("init gyro: %w", err)
	}
	return gyro, func() { dev.Close() }, nil
}

// Command turn-signal drives the turn signal lamps from the stalk switch and
// optionally reports state changes to MQTT and over HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/turn-signal/internal/clock"
	"github.com/sweeney/turn-signal/internal/config"
	"github.com/sweeney/turn-signal/internal/control"
	"github.com/sweeney/turn-signal/internal/gpio"
	"github.com/sweeney/turn-signal/internal/logic"
	"github.com/sweeney/turn-signal/internal/mqtt"
	"github.com/sweeney/turn-signal/internal/status"
	"github.com/sweeney/turn-signal/internal/web"
)

// eventQueue bounds transitions waiting for the daemon loop.
const eventQueue = 16

var (
	configPath   string
	flagPolicy   string
	flagEdgeMode string
	flagBroker   string
	flagHTTP     string

	mainCmd = &cobra.Command{
		Use:          "turn-signal",
		Short:        "Turn signal controller",
		SilenceUsage: true,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the controller",
		RunE:  runController,
	}
	stateCmd = &cobra.Command{
		Use:   "state",
		Short: "Print the current switch position and exit",
		RunE:  runState,
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the default configuration file",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), config.Sample)
		},
	}
)

func init() {
	mainCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config path. The path to the configuration file")
	runCmd.Flags().StringVar(&flagPolicy, "policy", "", `Mode policy, "level" or "toggle" (overrides config)`)
	runCmd.Flags().StringVar(&flagEdgeMode, "edge-mode", "", `Edge watching, "both" or "flip" (overrides config)`)
	runCmd.Flags().StringVar(&flagBroker, "broker", "", "MQTT broker address (overrides config)")
	runCmd.Flags().StringVar(&flagHTTP, "http", "", "HTTP status address (overrides config)")
	mainCmd.AddCommand(runCmd, stateCmd, configCmd)
}

func main() {
	if err := mainCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Policy = flagPolicy
	}
	if flags.Changed("edge-mode") {
		cfg.EdgeMode = flagEdgeMode
	}
	if flags.Changed("broker") {
		cfg.Broker = flagBroker
	}
	if flags.Changed("http") {
		cfg.HTTP = flagHTTP
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	lvl, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, err
	}
	log.SetLevel(lvl)
	return cfg, nil
}

func runState(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	port, err := gpio.NewRealPort(cfg.PortConfig())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer port.Close()

	in, err := port.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), describeInputs(in))
	return nil
}

func describeInputs(in gpio.Mask) string {
	left, right := in&gpio.SwitchLeft != 0, in&gpio.SwitchRight != 0
	return fmt.Sprintf("left=%t right=%t position=%s", left, right, logic.PositionOf(left, right))
}

func runController(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	policy, err := logic.PolicyByName(cfg.Policy)
	if err != nil {
		return err
	}
	mode, err := control.ParseEdgeMode(cfg.EdgeMode)
	if err != nil {
		return err
	}

	// Port first: inputs with pull-up and edge detection, lamps as outputs.
	port, err := gpio.NewRealPort(cfg.PortConfig())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer port.Close()

	debounce := clock.NewRealTimer(cfg.DebounceTick.Duration, false)
	defer debounce.Stop()
	heartbeat := clock.NewRealTimer(cfg.Heartbeat.Duration, false)
	defer heartbeat.Stop()

	events := make(chan logic.Event, eventQueue)
	ctrl, err := control.New(port, debounce, heartbeat, control.Config{
		Policy:        policy,
		FlashInterval: cfg.FlashInterval,
		DebounceTicks: cfg.DebounceTicks,
		EdgeMode:      mode,
		Events:        events,
	})
	if err != nil {
		return err
	}
	if err := ctrl.Start(); err != nil {
		return fmt.Errorf("start controller: %w", err)
	}

	var publisher mqtt.Publisher = nopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.Broker)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	// Tracker before STARTUP so the snapshot is available.
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}

	snap := tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTP).Info("http status server listening")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	log.WithFields(log.Fields{
		"policy":       cfg.Policy,
		"edge_mode":    cfg.EdgeMode,
		"flash_period": cfg.FlashPeriod(),
		"debounce":     cfg.DebounceTime(),
		"broker":       cfg.Broker,
	}).Info("started")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(ctrl, publisher, mqttStatus, tracker, cfg.StatusHeartbeat.Duration, time.Now, events, ticker.C, sigCh)

	cancel()
	if runErr := <-done; runErr != nil && err == nil {
		err = runErr
	}

	// Leave both lamps lit when the lines are released.
	if werr := port.WriteOr(gpio.Lights); werr != nil {
		log.WithError(werr).Warn("lights on at shutdown")
	}
	return err
}

// stateSource is the controller view the daemon loop needs.
type stateSource interface {
	Snapshot() control.Vars
}

func runLoop(ctrl stateSource, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, statusBeat time.Duration, now func() time.Time, events <-chan logic.Event, tick <-chan time.Time, sig <-chan os.Signal) error {
	journal := logic.NewJournal(now())

	refresh := func() {
		v := ctrl.Snapshot()
		tracker.Update(status.Signal{
			Turn:        v.Turn,
			Flash:       v.Flash,
			Position:    v.Position,
			Resolutions: v.Resolutions,
			Toggles:     v.Toggles,
		}, journal.EventCountsSnapshot(), journal.Last())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.WithField("signal", s).Info("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			refresh()
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      mqtt.EventShutdown,
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, mqtt.EventShutdown, signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.WithError(err).Warn("failed to publish shutdown event")
			}
			return nil

		case ev := <-events:
			journal.Record(ev)
			log.WithFields(log.Fields{
				"event":    ev.Type,
				"from":     ev.From,
				"to":       ev.To,
				"position": ev.Position,
			}).Info("transition")
			if err := publisher.Publish(ev); err != nil {
				log.WithError(err).Warn("publish error")
			}
			refresh()

		case <-tick:
			refresh()

			hb := journal.CheckHeartbeat(now(), statusBeat)
			if hb == nil {
				continue
			}
			log.WithFields(log.Fields{
				"uptime": hb.Uptime,
				"left":   hb.Counts.Left,
				"right":  hb.Counts.Right,
				"off":    hb.Counts.Off,
			}).Info("heartbeat")

			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			if err := publisher.PublishSystem(mqtt.SystemEvent{
				Timestamp:  hb.Timestamp,
				Event:      mqtt.EventHeartbeat,
				RawPayload: status.FormatStatusEvent(snap, mqtt.EventHeartbeat, ""),
			}); err != nil {
				log.WithError(err).Warn("heartbeat publish error")
			}
		}
	}
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Policy:        cfg.Policy,
		EdgeMode:      cfg.EdgeMode,
		HeartbeatUs:   cfg.Heartbeat.Microseconds(),
		FlashInterval: cfg.FlashInterval,
		FlashPeriodMs: cfg.FlashPeriod().Milliseconds(),
		DebounceUs:    cfg.DebounceTime().Microseconds(),
		StatusBeatMs:  cfg.StatusHeartbeat.Milliseconds(),
		Broker:        cfg.Broker,
		HTTPAddr:      cfg.HTTP,
	}
}

// nopPublisher stands in when no broker is configured.
type nopPublisher struct{}

func (nopPublisher) Publish(logic.Event) error            { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error                         { return nil }

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

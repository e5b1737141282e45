package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/cheew/terratherm/internal/handlers"
	"github.com/cheew/terratherm/internal/hardware"
	"github.com/cheew/terratherm/internal/logger"
	"github.com/cheew/terratherm/internal/models"
	"github.com/cheew/terratherm/internal/mqtt"
	"github.com/cheew/terratherm/internal/repository"
	"github.com/cheew/terratherm/internal/server"
	"github.com/cheew/terratherm/internal/service"
)

const (
	defaultTick          = 1 * time.Second
	defaultWatchdogCheck = 5 * time.Second
)

func main() {
	// load config.yml, then init the logger at the configured level
	cfgErr := loadConfig()
	log := logger.Get(viper.GetString("log.level"))
	if cfgErr != nil {
		log.Fatalw("error reading config", "err", cfgErr)
	}

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// hardware: a thermal simulator on the bench, real drivers elsewhere
	bus, driver := buildHardware(log)

	// wire dependencies
	repos := repository.NewRepository(db)
	services := service.NewService(repos, bus, driver, safetyConfig(), nil)
	services.AuthSvc.WithSigningKey(viper.GetString("auth.signing_key"))
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// safety state must be settled before anything can switch an output on
	if err := services.SafetySvc.Boot(ctx); err != nil {
		log.Fatalw("safety boot failed", "err", err)
	}
	if services.SafetySvc.InSafeMode() {
		log.Warnw("starting in safe mode", "status", services.SafetySvc.Status())
	}

	// discover probes and restore persisted output configuration
	if err := services.Sensors.Scan(); err != nil {
		log.Warnw("initial sensor scan failed", "err", err)
	}
	if err := services.Config.Load(ctx); err != nil {
		log.Warnw("failed to load output config, using defaults", "err", err)
	}

	// optional MQTT surface
	pub := connectMQTT(services, log.Named("mqtt"))
	if pub != nil {
		services.LoopSvc.SetSink(pub)
		defer func() {
			if cerr := pub.Close(); cerr != nil {
				log.Errorw("mqtt close failed", "err", cerr)
			}
		}()
	}

	// start control loop and watchdog monitor
	go services.Loop.Run(ctx, tickInterval())
	go watchWatchdog(ctx, services, log.Named("watchdog"))

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, services, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "terratherm.db")
		dbPath = "terratherm.db"
	}
	return repository.InitDB(dbPath)
}

// buildHardware selects between the bench simulator and real drivers. Only
// the simulator ships; the return types are what a real 1-Wire bus and
// PWM/relay board would implement.
func buildHardware(log *logger.Logger) (hardware.SensorBus, hardware.ActuatorDriver) {
	addresses := viper.GetStringSlice("hardware.sensors")
	if len(addresses) == 0 {
		for i := 0; i < models.NumOutputs; i++ {
			addresses = append(addresses, defaultSensorAddress(i))
		}
	}
	if viper.GetBool("hardware.sim") {
		log.Infow("using simulated hardware", "sensors", addresses)
		sim := hardware.NewSim(addresses)
		return sim, sim
	}
	// No real driver implementation yet; refuse to run with outputs that
	// would silently do nothing.
	log.Fatalw("hardware.sim=false but no real driver is built in")
	return nil, nil
}

func defaultSensorAddress(i int) string {
	return fmt.Sprintf("28-%012d", i)
}

// safetyConfig reads supervisor thresholds, falling back to defaults.
func safetyConfig() service.SafetyConfig {
	cfg := service.DefaultSafetyConfig()
	if v := viper.GetInt("safety.boot_loop_threshold"); v > 0 {
		cfg.BootLoopThreshold = v
	}
	if v := viper.GetInt("safety.boot_window_sec"); v > 0 {
		cfg.BootWindow = time.Duration(v) * time.Second
	}
	if v := viper.GetInt("safety.stable_after_sec"); v > 0 {
		cfg.StableAfter = time.Duration(v) * time.Second
	}
	if v := viper.GetInt("safety.watchdog_timeout_sec"); v > 0 {
		cfg.WatchdogTimeout = time.Duration(v) * time.Second
	}
	return cfg
}

func tickInterval() time.Duration {
	if v := viper.GetInt("control.tick_ms"); v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return defaultTick
}

// connectMQTT builds the broker publisher when enabled. A broker that is down
// at startup is not fatal: the controller runs without the MQTT surface.
func connectMQTT(services *service.Service, log *logger.Logger) *mqtt.RealPublisher {
	if !viper.GetBool("mqtt.enabled") {
		return nil
	}
	pub, err := mqtt.NewRealPublisher(
		viper.GetString("mqtt.broker"),
		viper.GetString("mqtt.client_id"),
		viper.GetString("mqtt.prefix"),
		services.ControlSvc,
		log,
	)
	if err != nil {
		log.Errorw("mqtt connect failed, continuing without broker", "err", err)
		return nil
	}
	return pub
}

// watchWatchdog escalates a stalled control loop to safe mode. The loop
// normally feeds every tick; missing the timeout means outputs may be stuck
// at their last power.
func watchWatchdog(ctx context.Context, services *service.Service, log *logger.Logger) {
	t := time.NewTicker(defaultWatchdogCheck)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if services.SafetySvc.WatchdogExpired(now) && !services.SafetySvc.InSafeMode() {
				log.Errorw("control loop watchdog expired, entering safe mode")
				// The stalled loop cannot run its own safe-mode gate, so
				// zero the actuators from here before anything else.
				services.LoopSvc.ForceOutputsOff()
				if err := services.Safety.RequestSafeMode(ctx, models.ReasonWatchdog); err != nil {
					log.Errorw("failed to enter safe mode", "err", err)
				}
			}
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	// mark the exit clean so the next boot is not counted as a watchdog reset
	if err := services.SafetySvc.Shutdown(ctx); err != nil {
		log.Errorw("failed to record clean shutdown", "err", err)
	}
}

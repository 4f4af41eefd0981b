package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/hikbridge/internal/api"
	"github.com/technosupport/hikbridge/internal/bridge"
	"github.com/technosupport/hikbridge/internal/config"
	"github.com/technosupport/hikbridge/internal/crypto"
	"github.com/technosupport/hikbridge/internal/data"
	"github.com/technosupport/hikbridge/internal/device"
	"github.com/technosupport/hikbridge/internal/notifications"
	"github.com/technosupport/hikbridge/internal/state"
)

const serviceName = "hikbridge"

// registrarProxy breaks the construction cycle between the manager and
// the notification listener.
type registrarProxy struct {
	target bridge.Registrar
}

func (p *registrarProxy) Register(s string)   { p.target.Register(s) }
func (p *registrarProxy) Deregister(s string) { p.target.Deregister(s) }

func main() {
	configPath := flag.String("config", "config/hikbridge.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Master keys for the credential store.
	keyring := crypto.NewKeyring()
	if err := keyring.LoadFromEnv(); err != nil {
		log.Fatalf("Failed to initialize keyring: %v", err)
	}

	// Database
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}
	defer db.Close()

	deviceRepo := data.DeviceModel{DB: db}
	credRepo := data.CredentialModel{DB: db}

	// Redis-backed entity state
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis ping error: %v", err)
	}
	states := state.NewStore(rdb, cfg.Redis.AlertTTL)

	// Downstream event sinks
	var publishers []notifications.Publisher

	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
		if err != nil {
			log.Printf("[WARN] NATS connect failed: %v. Events will not be published to NATS.", err)
		} else {
			defer nc.Close()
			publishers = append(publishers,
				notifications.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix, cfg.NATS.RetryMax))
			log.Println("Connected to NATS")
		}
	}

	if cfg.MQTT.Enabled {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTT.Broker).
			SetClientID(cfg.MQTT.ClientID).
			SetUsername(cfg.MQTT.Username).
			SetPassword(cfg.MQTT.Password).
			SetConnectRetry(true)
		client := mqtt.NewClient(opts)
		connected, err := notifications.DialMQTT(client, 10*time.Second)
		switch {
		case err != nil:
			log.Printf("[WARN] MQTT connect failed: %v. Events will not be published to MQTT.", err)
		case connected:
			log.Println("Connected to MQTT broker")
			defer client.Disconnect(250)
			publishers = append(publishers,
				notifications.NewMQTTPublisher(client, cfg.MQTT.TopicPrefix))
		default:
			// SetConnectRetry keeps dialing in the background.
			log.Printf("[WARN] MQTT broker %s not reachable yet, connecting in background", cfg.MQTT.Broker)
			defer client.Disconnect(250)
			publishers = append(publishers,
				notifications.NewMQTTPublisher(client, cfg.MQTT.TopicPrefix))
		}
	}

	// Device manager and notification listener reference each other;
	// the proxy lets the manager be built first.
	proxy := &registrarProxy{}
	manager := bridge.NewManager(bridge.Config{
		AlarmServerURL:  cfg.AlarmServer.URL,
		AlarmServerPath: cfg.AlarmServer.Path,
		Timeout:         cfg.Devices.Timeout,
		Debug:           cfg.Devices.Debug,
	}, deviceRepo, credRepo, keyring, proxy, states)

	hub := api.NewHub()
	dedup := notifications.NewDedup(cfg.Events.DedupMaxKeys, cfg.Events.DedupTTL)
	listener := notifications.NewListener(manager, states, hub, publishers, dedup)
	proxy.target = listener

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect every enabled device.
	manager.SetupAll(rootCtx)

	// Background polling keeps switch state and availability current.
	coordinator := device.NewCoordinator(device.CoordinatorConfig{
		EventInterval:     cfg.Events.PollInterval,
		SecondaryInterval: cfg.Events.AuxInterval,
		MaxConcurrent:     cfg.Events.MaxConcurrent,
	}, manager, states)
	coordinator.Start()

	// Pick up edits to the config file; only polling cadence is applied
	// live, connection settings need a restart. The mutex covers the
	// coordinator swap against the shutdown path below.
	var coordMu sync.Mutex
	pollEvery, auxEvery := cfg.Events.PollInterval, cfg.Events.AuxInterval
	watcher := config.NewWatcher(*configPath, func(next *config.Config) {
		coordMu.Lock()
		defer coordMu.Unlock()
		if next.Events.PollInterval == pollEvery && next.Events.AuxInterval == auxEvery {
			return
		}
		log.Printf("config: polling changed to %s/%s, restarting coordinator",
			next.Events.PollInterval, next.Events.AuxInterval)
		coordinator.Stop()
		coordinator = device.NewCoordinator(device.CoordinatorConfig{
			EventInterval:     next.Events.PollInterval,
			SecondaryInterval: next.Events.AuxInterval,
			MaxConcurrent:     next.Events.MaxConcurrent,
		}, manager, states)
		coordinator.Start()
		pollEvery, auxEvery = next.Events.PollInterval, next.Events.AuxInterval
	})
	watcher.Start(rootCtx)

	router := api.NewRouter(api.RouterDeps{
		Repo:         deviceRepo,
		Creds:        credRepo,
		Manager:      manager,
		States:       states,
		Listener:     listener,
		Hub:          hub,
		ListenerPath: cfg.AlarmServer.Path,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Starting server on :%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("Shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	coordMu.Lock()
	coordinator.Stop()
	coordMu.Unlock()

	// Revert alarm server settings on every managed device before the
	// process goes away, otherwise they keep posting into the void.
	manager.TeardownAll(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] graceful shutdown: %v", err)
	}
	log.Println("Server stopped")
}

package device

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/technosupport/hikbridge/internal/isapi"
	"github.com/technosupport/hikbridge/internal/metrics"
)

// ServiceSource hands the coordinator the current set of managed devices.
// The set changes as devices are added and removed at runtime.
type ServiceSource interface {
	Services() []*Service
}

// StateSink receives refreshed entity state. The coordinator never reads
// it back; state flows one way.
type StateSink interface {
	SetSwitch(ctx context.Context, uniqueID string, on bool) error
	SetAvailability(ctx context.Context, serialNo string, available bool) error
}

// CoordinatorConfig defines parameters
type CoordinatorConfig struct {
	EventInterval     time.Duration // detection switch refresh
	SecondaryInterval time.Duration // holiday mode and alarm server readback
	MaxConcurrent     int
}

// Coordinator periodically re-reads device state that the notification
// path cannot observe: which detections are armed, whether holiday mode
// is on, and whether the alarm server setting survived on the device.
type Coordinator struct {
	config   CoordinatorConfig
	source   ServiceSource
	sink     StateSink
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCoordinator(cfg CoordinatorConfig, source ServiceSource, sink StateSink) *Coordinator {
	if cfg.EventInterval == 0 {
		cfg.EventInterval = 300 * time.Second
	}
	if cfg.SecondaryInterval == 0 {
		cfg.SecondaryInterval = 60 * time.Minute
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 4
	}
	return &Coordinator{
		config: cfg,
		source: source,
		sink:   sink,
		quit:   make(chan struct{}),
	}
}

// Start initiates both refresh loops
func (c *Coordinator) Start() {
	c.wg.Add(2)
	go c.run(c.config.EventInterval, c.refreshEvents)
	go c.run(c.config.SecondaryInterval, c.refreshSecondary)
}

// Stop halts both loops and waits for in-flight passes to finish.
// Stopping an already stopped coordinator is a no-op.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.quit) })
	c.wg.Wait()
}

func (c *Coordinator) run(interval time.Duration, pass func(context.Context, *Service)) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial Run
	c.dispatch(pass)

	for {
		select {
		case <-ticker.C:
			c.dispatch(pass)
		case <-c.quit:
			return
		}
	}
}

// dispatch runs one pass over every managed device, bounded by a
// semaphore so a wall of slow devices cannot pile up goroutines.
func (c *Coordinator) dispatch(pass func(context.Context, *Service)) {
	sem := make(chan struct{}, c.config.MaxConcurrent)
	var wg sync.WaitGroup

	for _, svc := range c.source.Services() {
		wg.Add(1)
		sem <- struct{}{}
		go func(svc *Service) {
			defer wg.Done()
			defer func() { <-sem }()
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			pass(ctx, svc)
		}(svc)
	}
	wg.Wait()
}

func (c *Coordinator) refreshEvents(ctx context.Context, svc *Service) {
	dev := svc.Device()
	serial := dev.Info.SerialNo

	ok := true
	for _, cam := range dev.Cameras {
		for _, ev := range cam.Events {
			if !c.refreshOne(ctx, svc, cam.ID, ev) {
				ok = false
			}
		}
	}
	for _, ev := range dev.Events {
		if !c.refreshOne(ctx, svc, 0, ev) {
			ok = false
		}
	}

	if err := c.sink.SetAvailability(ctx, serial, ok); err != nil {
		log.Printf("[ERROR] coordinator: availability for %s: %v", serial, err)
	}
	if !ok {
		metrics.PollFailures.WithLabelValues(serial).Inc()
	}
}

func (c *Coordinator) refreshOne(ctx context.Context, svc *Service, channelID int, ev isapi.EventInfo) bool {
	armed, err := svc.EventArmed(ctx, channelID, ev.ID)
	if err != nil {
		log.Printf("[WARN] coordinator: read %s: %v", ev.UniqueID, err)
		return false
	}
	if err := c.sink.SetSwitch(ctx, ev.UniqueID, armed); err != nil {
		log.Printf("[ERROR] coordinator: store %s: %v", ev.UniqueID, err)
	}
	return true
}

func (c *Coordinator) refreshSecondary(ctx context.Context, svc *Service) {
	dev := svc.Device()
	serial := dev.Info.SerialNo

	if dev.Capabilities.HolidayMode {
		on, err := svc.Client().GetHolidayEnabled(ctx)
		if err != nil {
			log.Printf("[WARN] coordinator: holiday read for %s: %v", serial, err)
		} else if err := c.sink.SetSwitch(ctx, slugify(serial)+"_holiday", on); err != nil {
			log.Printf("[ERROR] coordinator: store holiday for %s: %v", serial, err)
		}
	}

	if dev.Capabilities.AlarmServer {
		as, err := svc.Client().GetAlarmServer(ctx)
		if err != nil {
			log.Printf("[WARN] coordinator: alarm server read for %s: %v", serial, err)
		} else if as != nil {
			log.Printf("[DEBUG] coordinator: %s alarm server is %s:%d%s", serial, as.Address, as.PortNo, as.URL)
		}
	}
}

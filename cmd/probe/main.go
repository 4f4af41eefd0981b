package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/technosupport/hikbridge/internal/device"
	"github.com/technosupport/hikbridge/internal/isapi"
)

// Connects to one camera or recorder and prints what the gateway would
// discover on setup. Useful before registering a device.
func main() {
	host := flag.String("host", "", "device base URL, e.g. http://192.168.1.64")
	username := flag.String("user", "admin", "username")
	password := flag.String("pass", "", "password (or ISAPI_PASSWORD env)")
	verify := flag.Bool("verify-ssl", false, "verify TLS certificates")
	debug := flag.Bool("debug", false, "log requests and responses")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("ISAPI_PASSWORD")
	}
	if *host == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	client, err := isapi.New(isapi.Config{
		Host:      *host,
		Username:  *username,
		Password:  *password,
		VerifySSL: *verify,
		Timeout:   10 * time.Second,
		Debug:     *debug,
	})
	if err != nil {
		log.Fatalf("Client error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dev, err := device.Build(ctx, client)
	if err != nil {
		log.Fatalf("Probe failed: %v", err)
	}

	fmt.Printf("Device:   %s (%s)\n", dev.Info.Name, dev.Info.Model)
	fmt.Printf("Serial:   %s\n", dev.Info.SerialNo)
	fmt.Printf("Firmware: %s\n", dev.Info.Firmware)
	fmt.Printf("Type:     %s", dev.Info.DeviceType)
	if dev.Info.IsNVR {
		fmt.Printf(" (NVR, %d analog / %d digital)",
			dev.Capabilities.AnalogCameras, dev.Capabilities.DigitalCameras)
	}
	fmt.Println()
	fmt.Printf("RTSP:     port %d\n", dev.RTSPPort)
	fmt.Printf("Features: holiday=%v mutex=%v alarm_server=%v io=%d/%d\n",
		dev.Capabilities.HolidayMode, dev.Capabilities.EventMutexChecking,
		dev.Capabilities.AlarmServer, dev.Capabilities.InputPorts, dev.Capabilities.OutputPorts)

	for _, cam := range dev.Cameras {
		fmt.Printf("\nChannel %d: %s (%s, %s)\n", cam.ID, cam.Name, cam.Model, cam.ConnectionType)
		for _, st := range cam.Streams {
			fmt.Printf("  stream %d %-12s %dx%d %s\n", st.ID, st.Type, st.Width, st.Height, st.Codec)
		}
		for _, ev := range cam.Events {
			state := "disarmed-by-default"
			if !ev.Disabled {
				state = "armed-by-default"
			}
			fmt.Printf("  event  %-24s %s\n", ev.ID, state)
		}
	}

	if len(dev.Events) > 0 {
		fmt.Println("\nDevice events:")
		for _, ev := range dev.Events {
			fmt.Printf("  %-24s io_port=%d\n", ev.ID, ev.IOPortID)
		}
	}

	if len(dev.Storage) > 0 {
		fmt.Println("\nStorage:")
		for _, s := range dev.Storage {
			fmt.Printf("  %-8s %-10s %s (%d MB free of %d MB)\n",
				s.Type, s.Status, s.Name, s.FreeSpace, s.Capacity)
		}
	}
}

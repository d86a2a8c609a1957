// BongoCat input service
// Captures global keyboard and mouse activity and streams it to the cat over WebSocket
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mxous/BongoCat/internal/api"
	"github.com/mxous/BongoCat/internal/autostart"
	"github.com/mxous/BongoCat/internal/config"
	"github.com/mxous/BongoCat/internal/device"
	"github.com/mxous/BongoCat/internal/network"
	"github.com/mxous/BongoCat/internal/osutils"
	"github.com/mxous/BongoCat/internal/tray"
)

var (
	version  = "0.1.0"
	showVer  = flag.Bool("version", false, "Show version")
	modeFlag = flag.String("mode", "", "Capture mode: auto, hook, raw or both (overrides config)")
	watch    = flag.Bool("watch", false, "Print events from a running service instead of starting one")
	noTray   = flag.Bool("no-tray", false, "Run without a system tray icon")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("bongocat version %s\n", version)
		return
	}

	cfgMgr, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}

	if *watch {
		runWatch(cfgMgr)
		return
	}

	runService(cfgMgr)
}

// captureMode picks the -mode flag over the configured mode
func captureMode(cfgMgr *config.Manager) device.Mode {
	s := *modeFlag
	if s == "" {
		s = cfgMgr.Get().Capture.Mode
	}
	mode, err := device.ParseMode(s)
	if err != nil {
		log.Fatalf("Invalid capture mode: %v", err)
	}
	return mode
}

func runService(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get()
	mode := captureMode(cfgMgr)

	if w := osutils.CaptureWarning(); w != "" {
		log.Printf("Warning: %s", w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfgMgr.Watch(ctx); err != nil {
		log.Printf("Warning: config hot reload disabled: %v", err)
	}
	syncAutostart(cfg.General.Autostart)

	port := cfg.General.APIPort
	cfgMgr.RegisterChangeCallback(func() {
		cur := cfgMgr.Get()
		if cur.General.APIPort != port {
			log.Printf("Config: api_port changed to %d; restart to apply", cur.General.APIPort)
		}
		syncAutostart(cur.General.Autostart)
	})

	// Raw input needs a window in this process to hook
	if r := mode.Resolve(); r == device.ModeRaw || r == device.ModeBoth {
		if _, err := device.OpenSinkWindow(cfg.Capture.WindowTitle); err != nil {
			log.Printf("Warning: could not open input window %q: %v", cfg.Capture.WindowTitle, err)
		}
	}

	svc := device.NewService(cfg.Capture.WindowTitle)
	server := api.NewServer(cfgMgr, svc)
	defer server.Close()

	go func() {
		if err := server.Start(port); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	startCapture := func() {
		if err := server.StartCapture(mode); err != nil {
			if errors.Is(err, device.ErrUnsupportedPlatform) {
				log.Printf("Capture: raw input is not available here; use -mode hook")
			}
			log.Printf("Capture: start failed: %v", err)
			return
		}
		log.Printf("Capture: listening (mode=%s)", mode.Resolve())
	}

	if cfg.General.ListenOnLaunch {
		startCapture()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *noTray {
		log.Println("BongoCat service running. Press Ctrl+C to stop.")
		<-sigCh
		log.Println("Shutting down...")
		return
	}

	t := tray.New("BongoCat", "BongoCat input capture", cancel)
	statusID := t.AddLabel(statusLine(svc.Status()))
	t.AddSeparator()
	t.AddMenuItem("Start capture", startCapture)
	var loginID int
	loginID = t.AddCheckbox("Launch at login", autostart.IsEnabled(), func() {
		next := *cfgMgr.Get()
		next.General.Autostart = !next.General.Autostart
		cfgMgr.Set(&next)
		if err := cfgMgr.Save(); err != nil {
			log.Printf("Failed to save config: %v", err)
		}
		t.SetItemChecked(loginID, autostart.IsEnabled())
	})
	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.SetItemTitle(statusID, statusLine(svc.Status()))
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		<-sigCh
		log.Println("Shutting down...")
		t.Stop()
	}()

	log.Println("BongoCat service running. Press Ctrl+C to stop.")
	t.Run()
}

func syncAutostart(want bool) {
	if err := autostart.Sync(want); err != nil {
		log.Printf("Warning: failed to update launch at login: %v", err)
	}
}

func statusLine(st device.Status) string {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	return fmt.Sprintf("Hook: %s, Raw: %s", onOff(st.HookListening), onOff(st.RawListening))
}

// runWatch subscribes to a running service and prints each event as a JSON line
func runWatch(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get()
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.General.APIPort)

	client := network.NewWSClient(addr, cfg.General.APIToken, *modeFlag)
	enc := json.NewEncoder(os.Stdout)
	client.OnEvent = func(ev device.DeviceEvent) {
		if err := enc.Encode(ev); err != nil {
			log.Printf("Watch: write failed: %v", err)
		}
	}
	client.OnStatus = func(st device.Status) {
		log.Printf("Watch: hook=%v raw=%v position=(%d,%d) dropped=%d",
			st.HookListening, st.RawListening, st.Position.X, st.Position.Y, st.Dropped)
	}
	client.Start()
	defer client.Close()

	log.Printf("Watching %s. Press Ctrl+C to stop.", addr)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

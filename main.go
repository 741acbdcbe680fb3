package main

import (
	"bufio"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"
)

// Entry point for the sensornode data logger
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	var cfgMgr ConfigManager
	if err := cfgMgr.Load(); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	cfgMgr.ApplyEnv()

	current := cfgMgr.Get().TZRegion
	if tz := promptTimeZone(current); tz != current {
		if err := cfgMgr.Update(func(c *Config) error {
			c.TZRegion = tz
			return nil
		}); err != nil {
			log.Printf("could not persist time zone: %v", err)
		}
	}
	log.Printf("Using TZ: %s", cfgMgr.Get().TZRegion)

	logBootBanner()

	node, err := NewNode(&cfgMgr)
	if err != nil {
		log.Fatalf("initialisation error: %v", err)
	}
	defer node.Close()

	if cfgMgr.Get().HTTPPort == 0 {
		log.Println("status API disabled, running control loop only")
		select {}
	}
	server := NewServer(&cfgMgr, node)
	if err := server.Start(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// promptTimeZone gives an operator on an attached terminal ten seconds to
// type an IANA time zone (e.g. America/Los_Angeles); Enter or silence
// keeps the passed default.  Off a terminal (systemd, cron) it returns
// immediately.
func promptTimeZone(def string) string {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return def
	}
	log.Printf("Enter IANA time zone (default %s, 10s to answer): ", def)
	lines := make(chan string, 1)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		if sc.Scan() {
			lines <- sc.Text()
		}
	}()
	select {
	case line := <-lines:
		tz := strings.TrimSpace(line)
		if tz == "" {
			return def
		}
		if _, err := time.LoadLocation(tz); err != nil {
			log.Printf("unknown time zone %q, keeping %s", tz, def)
			return def
		}
		return tz
	case <-time.After(10 * time.Second):
		return def
	}
}

// logBootBanner logs the host's network identity at startup, the way the
// firmware printed its connection details after joining Wi-Fi.
func logBootBanner() {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	log.Printf("Booting on %s", host)
	ifaces, err := net.Interfaces()
	if err != nil {
		log.Printf("no network interfaces: %v", err)
		return
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		parts := make([]string, len(addrs))
		for i, a := range addrs {
			parts[i] = a.String()
		}
		log.Printf("  %s: %s", iface.Name, strings.Join(parts, ", "))
	}
}

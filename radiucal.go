// radiucal is a RADIUS proxy: it terminates UDP and RADIUS-over-TLS
// client sessions, matches each Access-Request's realm against a
// configured rule set, and forwards it to the matching upstream over its
// own per-upstream request table and transport (spec §4). This file wires
// the packages under internal/ together the way the teacher's original
// single-upstream UDP relay wired net.UDPConn and a plugin list, just over
// a richer peer/realm/transport model.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/epiphyte/goutils"
	"github.com/epiphyte/radiucal/internal/config"
	"github.com/epiphyte/radiucal/internal/peer"
	"github.com/epiphyte/radiucal/internal/proxycore"
	"github.com/epiphyte/radiucal/internal/replyqueue"
	"github.com/epiphyte/radiucal/internal/transport"
	"github.com/epiphyte/radiucal/plugins"
)

var vers = "master"

const (
	defaultConfigPath  = "/etc/radsecproxy.conf"
	fallbackConfigPath = "radsecproxy.conf"
)

// govLogger satisfies both reqtable.Logger and proxycore.Logger over
// github.com/epiphyte/goutils, the same logging package the teacher used
// for every WriteInfo/WriteError/WriteDebug call in radiucal.go.
type govLogger struct{}

func (govLogger) Warn(msg string, args ...interface{})  { goutils.WriteError(msg, fmt.Errorf("%v", args)) }
func (govLogger) Info(msg string, args ...interface{})  { goutils.WriteInfo(msg, args...) }
func (govLogger) Debug(msg string, args ...interface{}) { goutils.WriteDebug(msg, args...) }

func resolveConfigPath(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if goutils.PathNotExists(defaultConfigPath) {
		return fallbackConfigPath
	}
	return defaultConfigPath
}

func main() {
	var configPath = flag.String("c", "", "Configuration file")
	var logLevel = flag.Int("d", 0, "Log level (1-4)")
	var foreground = flag.Bool("f", false, "Run in the foreground, logging to stderr")
	var version = flag.Bool("v", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("radiucal (%s)\n", vers)
		return
	}

	res, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		goutils.WriteError("unable to load config", err)
		os.Exit(1)
	}

	level := res.LogLevel
	if *logLevel != 0 {
		level = *logLevel
	}
	logOpts := goutils.NewLogOptions()
	logOpts.Debug = level >= 4
	logOpts.Info = level >= 2
	goutils.ConfigureLogging(logOpts)

	if !*foreground && res.LogDestination != "" {
		dest := strings.TrimPrefix(res.LogDestination, "file://")
		if f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644); err == nil {
			os.Stdout = f
			os.Stderr = f
		} else {
			goutils.WriteError("unable to open log destination, staying on stderr", err)
		}
	}

	log := govLogger{}
	goutils.WriteInfo(fmt.Sprintf("radiucal (%s)", vers))

	if err := run(res, log); err != nil {
		goutils.WriteError("fatal error", err)
		os.Exit(1)
	}
}

// run wires every configured client/upstream/realm into the running
// pipeline per spec §5's task inventory, then blocks until interrupted.
func run(res *config.Result, log proxycore.Logger) error {
	hooks, err := buildHooks(res.Plugins, res.PluginLib, res.PluginLogs)
	if err != nil {
		return err
	}
	pipeline := proxycore.NewPipeline(res.Realms, hooks, log)

	stop := make(chan struct{})

	datagramClients := attachReplyQueues(res.Registry)

	for _, u := range res.Registry.Upstreams {
		if err := proxycore.StartUpstream(u, log, stop); err != nil {
			return fmt.Errorf("starting upstream %s: %w", u.Name, err)
		}
	}

	var udpListener *transport.Listener
	if len(datagramClients) > 0 {
		if res.ListenUDP == nil {
			return fmt.Errorf("config: datagram clients configured but no ListenUDP address set")
		}
		udpListener, err = transport.ListenDatagram(res.ListenUDP)
		if err != nil {
			return fmt.Errorf("binding UDP listener: %w", err)
		}
		go proxycore.RunDatagramIngest(udpListener, res.Registry, pipeline)
		go proxycore.RunReplyWriter(datagramClients[0].ReplyQueue.(*replyqueue.Queue),
			proxycore.DatagramReplySink{Listener: udpListener}, "datagram", hooks, log)
	}

	var streamListener *transport.StreamListener
	if hasStreamClients(res.Registry) {
		if res.ListenTCP == nil {
			return fmt.Errorf("config: stream clients configured but no ListenTCP address set")
		}
		streamListener, err = transport.ListenStream(res.ListenTCP)
		if err != nil {
			return fmt.Errorf("binding TLS listener: %w", err)
		}
		go proxycore.RunStreamListener(streamListener, res.Registry, pipeline)
	}

	waitForSignal(log)
	close(stop)
	if udpListener != nil {
		udpListener.Close()
	}
	if streamListener != nil {
		streamListener.Close()
	}
	return nil
}

// attachReplyQueues wires every configured datagram client's
// peer.ReplyQueueHandle to one shared queue, sized
// client_udp_count*replyqueue.Capacity (spec §4.7). Stream clients get no
// queue here: RunStreamListener's acceptOne allocates a fresh one for each
// accepted session, so that a reconnecting client is never left holding a
// prior session's closed queue.
func attachReplyQueues(reg *peer.Registry) []*peer.Client {
	var datagramClients []*peer.Client
	for _, c := range reg.Clients {
		if c.Kind == peer.Datagram {
			datagramClients = append(datagramClients, c)
		}
	}
	if len(datagramClients) > 0 {
		shared := replyqueue.New(len(datagramClients) * replyqueue.Capacity)
		for _, c := range datagramClients {
			c.ReplyQueue = shared
		}
	}
	return datagramClients
}

func hasStreamClients(reg *peer.Registry) bool {
	for _, c := range reg.Clients {
		if c.Kind == peer.Stream {
			return true
		}
	}
	return false
}

// buildHooks resolves the config file's "plugins" option to a static
// proxycore.Hook set (the teacher's plugin.Open loader has no equivalent
// here; see DESIGN.md).
func buildHooks(names []string, lib, logs string) (proxycore.Hook, error) {
	if len(names) == 0 {
		return proxycore.NopHook{}, nil
	}
	pctx := plugins.Context{
		Logs:     logs,
		Lib:      lib,
		Instance: "",
		Cache:    true,
	}
	var hs proxycore.Hooks
	for _, name := range names {
		h, err := plugins.New(name, pctx)
		if err != nil {
			return nil, fmt.Errorf("loading plugin %s: %w", name, err)
		}
		hs = append(hs, h)
	}
	return hs, nil
}

func waitForSignal(log proxycore.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	log.Info("shutting down on interrupt")
}

package capture

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"shelfscan/internal/logger"
)

// HotplugWatcher tracks whether the configured scanner node is plugged in by
// listening to udev netlink events.
type HotplugWatcher struct {
	device string
	log    *logger.Logger

	mu      sync.Mutex
	present bool
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func NewHotplugWatcher(device string, log *logger.Logger) *HotplugWatcher {
	if log == nil {
		log = logger.Get()
	}
	w := &HotplugWatcher{
		device: strings.TrimSpace(device),
		log:    log.WithComponent("hotplug"),
	}
	if w.device != "" && w.device != StdinPath {
		_, err := os.Stat(w.device)
		w.present = err == nil
	} else {
		w.present = true
	}
	return w
}

// Start connects to the netlink socket. Failure to connect is logged and
// otherwise ignored: presence then stays at its initial value.
func (w *HotplugWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running || w.device == "" || w.device == StdinPath {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.log.Warn("netlink unavailable; scanner hotplug not tracked", map[string]interface{}{"error": err.Error()})
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true
	go w.loop(ctx, conn, w.quit)

	w.log.Info("hotplug watcher started", map[string]interface{}{"device": w.device})
	return nil
}

// Stop closes the netlink connection. Safe to call more than once.
func (w *HotplugWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.quit)
	_ = w.conn.Close()
	w.conn = nil
	w.running = false
}

// Present reports the last known presence of the scanner node.
func (w *HotplugWatcher) Present() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.present
}

func (w *HotplugWatcher) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, w.matcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case ev := <-queue:
			w.handleEvent(ev)
		case err := <-errs:
			w.log.Warn("netlink monitor error", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (w *HotplugWatcher) matcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty|hidraw|input",
		},
	})
	return rules
}

func (w *HotplugWatcher) handleEvent(ev netlink.UEvent) {
	devname := ev.Env["DEVNAME"]
	if devname == "" {
		return
	}
	if !strings.HasPrefix(devname, "/") {
		devname = "/dev/" + devname
	}
	if devname != w.device {
		return
	}

	w.mu.Lock()
	switch ev.Action {
	case netlink.ADD:
		w.present = true
	case netlink.REMOVE:
		w.present = false
	}
	present := w.present
	w.mu.Unlock()

	w.log.Info("scanner hotplug", map[string]interface{}{
		"device":  devname,
		"action":  string(ev.Action),
		"present": present,
	})
}

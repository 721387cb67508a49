// Package forcesignal watches a directory for operator-dropped marker
// files and turns them into Manager.RecordForceInitiate calls, debounced
// so a burst of markers yields at most one call per debounce window,
// giving a concrete shape to an operator's manual force-initiate
// command. It is built on github.com/rjeczalik/notify: one notify.Watch,
// one debounced loop, one quit channel.
package forcesignal

import (
	"time"

	"github.com/rjeczalik/notify"

	"github.com/Roemello4/holochain/internal/glog"
)

// Forcer is the subset of gossip.Manager the watcher drives.
type Forcer interface {
	RecordForceInitiate()
}

// Watcher watches a directory; any create event inside it triggers a
// force-initiate, debounced so a burst of dropped files only triggers
// once per debounceDuration.
type Watcher struct {
	dir     string
	forcer  Forcer
	ev      chan notify.EventInfo
	quit    chan struct{}
	started bool
}

const debounceDuration = 500 * time.Millisecond

// New builds a Watcher over dir. Call Start to begin watching.
func New(dir string, forcer Forcer) *Watcher {
	return &Watcher{
		dir:    dir,
		forcer: forcer,
		ev:     make(chan notify.EventInfo, 10),
		quit:   make(chan struct{}),
	}
}

// Start begins watching dir in the background. It is a no-op if already
// started.
func (w *Watcher) Start() error {
	if w.started {
		return nil
	}
	if err := notify.Watch(w.dir, w.ev, notify.Create); err != nil {
		return err
	}
	w.started = true
	go w.loop()
	return nil
}

// Stop releases the watch and ends the background loop.
func (w *Watcher) Stop() {
	close(w.quit)
	notify.Stop(w.ev)
}

func (w *Watcher) loop() {
	glog.V(glog.Detail).Infof("forcesignal: watching %s", w.dir)
	defer glog.V(glog.Detail).Infof("forcesignal: no longer watching %s", w.dir)

	var (
		debounce = time.NewTimer(0)
		inCycle  bool
		pending  bool
	)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-w.quit:
			return
		case ev := <-w.ev:
			glog.V(glog.Detail).Infof("forcesignal: marker dropped: %s", ev.Path())
			if !inCycle {
				debounce.Reset(debounceDuration)
				inCycle = true
			} else {
				pending = true
			}
		case <-debounce.C:
			w.forcer.RecordForceInitiate()
			if pending {
				debounce.Reset(debounceDuration)
				pending = false
			} else {
				inCycle = false
			}
		}
	}
}

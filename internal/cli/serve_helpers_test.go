package cli

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/KafClaw/boardbot/internal/admin"
)

var (
	serveTestSignalMu sync.Mutex
	serveTestSignalCh chan<- os.Signal
)

func stubServeSignals(t *testing.T) {
	t.Helper()
	origNotify := serveSignalNotify
	origStop := serveSignalStop
	serveSignalNotify = func(c chan<- os.Signal, _ ...os.Signal) {
		serveTestSignalMu.Lock()
		serveTestSignalCh = c
		serveTestSignalMu.Unlock()
	}
	serveSignalStop = func(c chan<- os.Signal) {
		serveTestSignalMu.Lock()
		if serveTestSignalCh == c {
			serveTestSignalCh = nil
		}
		serveTestSignalMu.Unlock()
	}
	t.Cleanup(func() {
		serveSignalNotify = origNotify
		serveSignalStop = origStop
		serveTestSignalMu.Lock()
		serveTestSignalCh = nil
		serveTestSignalMu.Unlock()
	})
}

func sendServeSignal(t *testing.T, sig os.Signal) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		serveTestSignalMu.Lock()
		ch := serveTestSignalCh
		serveTestSignalMu.Unlock()
		if ch != nil {
			ch <- sig
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for serve signal channel")
}

func adminRecord(token, orgID string) admin.Record {
	return admin.Record{Token: token, OrgID: orgID}
}

package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/leeineian/resonance/sys"
)

const pidFile = ".bot.pid"

// lockPIDFile takes the instance lock, terminating a previous instance that
// still holds it. The returned func releases the lock.
func lockPIDFile() func() {
	f, err := os.OpenFile(pidFile, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		sys.LogFatal("Failed to open PID file: %v", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if err != syscall.EWOULDBLOCK {
			sys.LogFatal("Failed to lock PID file: %v", err)
		}

		var oldPid int
		_, _ = f.Seek(0, 0)
		if _, scanErr := fmt.Fscanf(f, "%d", &oldPid); scanErr != nil || oldPid == os.Getpid() {
			<-ticker.C
			continue
		}
		process, procErr := os.FindProcess(oldPid)
		if procErr != nil {
			<-ticker.C
			continue
		}

		sys.LogInfo(sys.MsgBotKillingOld, oldPid)
		_ = process.Signal(syscall.SIGTERM)
		if !waitExit(process, ticker, 5*time.Second) {
			sys.LogWarn("Old process %d is stubborn. Sending SIGKILL...", oldPid)
			_ = process.Signal(syscall.SIGKILL)
			waitExit(process, ticker, 2*time.Second)
		}
		sys.LogInfo(sys.MsgBotOldTerminated)
	}

	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	_, _ = fmt.Fprintf(f, "%d", os.Getpid())
	_ = f.Sync()

	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		_ = os.Remove(pidFile)
	}
}

func waitExit(p *os.Process, ticker *time.Ticker, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case <-ticker.C:
			if err := p.Signal(syscall.Signal(0)); err != nil {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

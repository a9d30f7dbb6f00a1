package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/walletrelay/walletrelay-go/pkg/log"
)

func TestMonitorHardTimeout(t *testing.T) {
	m := NewMonitor(MonitorConfig{})

	fired := make(chan log.TimeoutKind, 1)
	cancel := m.Arm(30*time.Millisecond, func(kind log.TimeoutKind) { fired <- kind })
	defer cancel()

	select {
	case kind := <-fired:
		assert.Equal(t, log.TimeoutHard, kind)
	case <-time.After(time.Second):
		t.Fatal("monitor never fired")
	}
}

func TestMonitorSoftWhenBackgrounded(t *testing.T) {
	m := NewMonitor(MonitorConfig{
		Foregrounded: func() bool { return false },
	})

	fired := make(chan log.TimeoutKind, 1)
	cancel := m.Arm(30*time.Millisecond, func(kind log.TimeoutKind) { fired <- kind })
	defer cancel()

	select {
	case kind := <-fired:
		assert.Equal(t, log.TimeoutSoft, kind)
	case <-time.After(time.Second):
		t.Fatal("monitor never fired")
	}
}

func TestMonitorCancelPreventsFire(t *testing.T) {
	m := NewMonitor(MonitorConfig{})

	fired := make(chan log.TimeoutKind, 1)
	cancel := m.Arm(50*time.Millisecond, func(kind log.TimeoutKind) { fired <- kind })
	cancel()
	cancel() // idempotent

	select {
	case <-fired:
		t.Fatal("cancelled monitor fired")
	case <-time.After(150 * time.Millisecond):
	}
}

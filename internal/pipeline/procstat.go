package pipeline

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// processRSSMB returns the resident set size of this process in megabytes.
// It reads /proc/self/status on Linux and falls back to the Go runtime's
// view of OS-reserved memory elsewhere.
func processRSSMB() (float64, error) {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.Sys) / 1024 / 1024, nil
	}

	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, fmt.Errorf("parse VmRSS: %w", err)
		}
		return kb / 1024, nil
	}
	return 0, fmt.Errorf("VmRSS not found in /proc/self/status")
}

// cpuSampler computes process CPU usage between consecutive calls from
// /proc/self/stat jiffy counters.
type cpuSampler struct {
	lastJiffies uint64
	lastSample  time.Time
}

// jiffies per second; the kernel default on every platform we run on.
const clockTicks = 100

// percent returns the CPU usage since the previous call, or 0 on the first
// call. Returns -1 with an error when /proc is unavailable.
func (c *cpuSampler) percent() (float64, error) {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return -1, err
	}

	// Field 2 (comm) may contain spaces; everything after the closing paren
	// is space-separated. utime and stime are fields 14 and 15.
	idx := strings.LastIndexByte(string(data), ')')
	if idx < 0 {
		return -1, fmt.Errorf("malformed /proc/self/stat")
	}
	fields := strings.Fields(string(data)[idx+1:])
	if len(fields) < 13 {
		return -1, fmt.Errorf("malformed /proc/self/stat")
	}

	utime, err1 := strconv.ParseUint(fields[11], 10, 64)
	stime, err2 := strconv.ParseUint(fields[12], 10, 64)
	if err1 != nil || err2 != nil {
		return -1, fmt.Errorf("parse utime/stime")
	}

	now := time.Now()
	total := utime + stime

	if c.lastSample.IsZero() {
		c.lastJiffies = total
		c.lastSample = now
		return 0, nil
	}

	elapsed := now.Sub(c.lastSample).Seconds()
	used := float64(total-c.lastJiffies) / clockTicks

	c.lastJiffies = total
	c.lastSample = now

	if elapsed <= 0 {
		return 0, nil
	}
	return used / elapsed * 100, nil
}

package devicetrust

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// MockLocationEnv, when set to a true value, marks a spoofed location
// provider. Location overrides have no standard signal on desktop hosts.
const MockLocationEnv = "CLIO_MOCK_LOCATION"

// host wraps the OS calls the probes need so tests can fake them.
type host struct {
	goos     string
	getuid   func() int
	getenv   func(string) string
	readFile func(string) ([]byte, error)
	stat     func(string) (fs.FileInfo, error)
}

func realHost() host {
	return host{
		goos:     runtime.GOOS,
		getuid:   os.Geteuid,
		getenv:   os.Getenv,
		readFile: os.ReadFile,
		stat:     os.Stat,
	}
}

var suPaths = []string{
	"/system/bin/su",
	"/system/xbin/su",
	"/sbin/su",
	"/su/bin/su",
	"/data/local/xbin/su",
	"/data/local/bin/su",
	"/system/app/Superuser.apk",
	"/sbin/magisk",
}

var jailbreakPaths = []string{
	"/Applications/Cydia.app",
	"/Applications/Sileo.app",
	"/Library/MobileSubstrate/MobileSubstrate.dylib",
	"/private/var/lib/apt",
	"/var/jb",
	"/usr/sbin/sshd",
	"/bin/bash",
}

var emulatorProducts = []string{
	"virtualbox",
	"vmware",
	"kvm",
	"qemu",
	"bochs",
	"hvm domu",
	"virtual machine",
	"android sdk built for",
	"goldfish",
}

// HostProbes returns the probes for the running host.
func HostProbes() []Probe {
	return realHost().probes()
}

func (h host) probes() []Probe {
	return []Probe{
		ProbeFunc{K: Root, Fn: h.detectRoot},
		ProbeFunc{K: Jailbreak, Fn: h.detectJailbreak},
		ProbeFunc{K: Emulator, Fn: h.detectEmulator},
		ProbeFunc{K: Debugger, Fn: h.detectDebugger},
		ProbeFunc{K: MockLocation, Fn: h.detectMockLocation},
	}
}

func (h host) anyExists(paths []string) (bool, error) {
	for _, p := range paths {
		_, err := h.stat(p)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission) {
			return false, err
		}
	}
	return false, nil
}

// detectRoot flags a process running as uid 0 or an su binary left by a
// rooting tool.
func (h host) detectRoot(ctx context.Context) (bool, error) {
	if h.goos != "windows" && h.getuid() == 0 {
		return true, nil
	}
	return h.anyExists(suPaths)
}

// detectJailbreak only applies to Apple hosts. /bin/bash and sshd exist on
// every macOS install, so they count only on iOS.
func (h host) detectJailbreak(ctx context.Context) (bool, error) {
	switch h.goos {
	case "ios":
		return h.anyExists(jailbreakPaths)
	case "darwin":
		return h.anyExists(jailbreakPaths[:5])
	}
	return false, nil
}

func (h host) detectEmulator(ctx context.Context) (bool, error) {
	if h.goos != "linux" && h.goos != "android" {
		return false, nil
	}

	cpu, err := h.readFile("/proc/cpuinfo")
	if err == nil && cpuHasHypervisorFlag(cpu) {
		return true, nil
	}

	product, err := h.readFile("/sys/class/dmi/id/product_name")
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	name := strings.ToLower(strings.TrimSpace(string(product)))
	for _, p := range emulatorProducts {
		if strings.Contains(name, p) {
			return true, nil
		}
	}
	return false, nil
}

func cpuHasHypervisorFlag(cpuinfo []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(cpuinfo))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "flags") {
			continue
		}
		for _, f := range strings.Fields(line) {
			if f == "hypervisor" {
				return true
			}
		}
	}
	return false
}

// detectDebugger reads TracerPid from /proc/self/status.
func (h host) detectDebugger(ctx context.Context) (bool, error) {
	if h.goos != "linux" && h.goos != "android" {
		return false, nil
	}
	status, err := h.readFile("/proc/self/status")
	if err != nil {
		return false, err
	}
	sc := bufio.NewScanner(bytes.NewReader(status))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "TracerPid:") {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "TracerPid:")))
		if err != nil {
			return false, err
		}
		return pid != 0, nil
	}
	return false, sc.Err()
}

func (h host) detectMockLocation(ctx context.Context) (bool, error) {
	v := h.getenv(MockLocationEnv)
	if v == "" {
		return false, nil
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return false, err
	}
	return on, nil
}

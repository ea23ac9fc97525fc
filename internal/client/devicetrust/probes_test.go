package devicetrust

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInfo struct{ fs.FileInfo }

func fakeHost(goos string) host {
	return host{
		goos:     goos,
		getuid:   func() int { return 1000 },
		getenv:   func(string) string { return "" },
		readFile: func(string) ([]byte, error) { return nil, fs.ErrNotExist },
		stat:     func(string) (fs.FileInfo, error) { return nil, fs.ErrNotExist },
	}
}

func withFiles(h host, files map[string]string) host {
	h.readFile = func(p string) ([]byte, error) {
		if v, ok := files[p]; ok {
			return []byte(v), nil
		}
		return nil, fs.ErrNotExist
	}
	h.stat = func(p string) (fs.FileInfo, error) {
		if _, ok := files[p]; ok {
			return fakeInfo{}, nil
		}
		return nil, fs.ErrNotExist
	}
	return h
}

func TestDetectRoot(t *testing.T) {
	ctx := context.Background()

	h := fakeHost("linux")
	found, err := h.detectRoot(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	h.getuid = func() int { return 0 }
	found, err = h.detectRoot(ctx)
	require.NoError(t, err)
	assert.True(t, found)

	h = withFiles(fakeHost("android"), map[string]string{"/system/xbin/su": ""})
	found, err = h.detectRoot(ctx)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDetectRoot_StatErrorPropagates(t *testing.T) {
	h := fakeHost("linux")
	h.stat = func(string) (fs.FileInfo, error) { return nil, fs.ErrInvalid }

	_, err := h.detectRoot(context.Background())
	require.ErrorIs(t, err, fs.ErrInvalid)
}

func TestDetectJailbreak(t *testing.T) {
	ctx := context.Background()

	found, err := withFiles(fakeHost("linux"), map[string]string{"/var/jb": ""}).detectJailbreak(ctx)
	require.NoError(t, err)
	assert.False(t, found, "only Apple hosts")

	found, err = withFiles(fakeHost("darwin"), map[string]string{"/bin/bash": ""}).detectJailbreak(ctx)
	require.NoError(t, err)
	assert.False(t, found, "bash is stock on macOS")

	found, err = withFiles(fakeHost("ios"), map[string]string{"/bin/bash": ""}).detectJailbreak(ctx)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = withFiles(fakeHost("darwin"), map[string]string{"/Applications/Cydia.app": ""}).detectJailbreak(ctx)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDetectEmulator(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		goos  string
		files map[string]string
		want  bool
	}{
		{"bare metal", "linux", map[string]string{
			"/proc/cpuinfo":                 "processor\t: 0\nflags\t\t: fpu vme de pse\n",
			"/sys/class/dmi/id/product_name": "ThinkPad X1 Carbon\n",
		}, false},
		{"hypervisor flag", "linux", map[string]string{
			"/proc/cpuinfo": "flags\t\t: fpu vme hypervisor sse\n",
		}, true},
		{"dmi product", "linux", map[string]string{
			"/sys/class/dmi/id/product_name": "VirtualBox\n",
		}, true},
		{"no dmi", "linux", map[string]string{}, false},
		{"not linux", "darwin", map[string]string{
			"/proc/cpuinfo": "flags : hypervisor\n",
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := withFiles(fakeHost(tt.goos), tt.files).detectEmulator(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, found)
		})
	}
}

func TestDetectDebugger(t *testing.T) {
	ctx := context.Background()

	found, err := withFiles(fakeHost("linux"), map[string]string{
		"/proc/self/status": "Name:\tclio\nTracerPid:\t0\nUid:\t1000\n",
	}).detectDebugger(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = withFiles(fakeHost("linux"), map[string]string{
		"/proc/self/status": "Name:\tclio\nTracerPid:\t4242\n",
	}).detectDebugger(ctx)
	require.NoError(t, err)
	assert.True(t, found)

	_, err = fakeHost("linux").detectDebugger(ctx)
	require.Error(t, err)

	found, err = fakeHost("windows").detectDebugger(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDetectMockLocation(t *testing.T) {
	ctx := context.Background()
	h := fakeHost("linux")

	found, err := h.detectMockLocation(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	h.getenv = func(k string) string {
		if k == MockLocationEnv {
			return "true"
		}
		return ""
	}
	found, err = h.detectMockLocation(ctx)
	require.NoError(t, err)
	assert.True(t, found)

	h.getenv = func(string) string { return "sometimes" }
	_, err = h.detectMockLocation(ctx)
	require.Error(t, err)
}

func TestHostProbes_CoverEveryKind(t *testing.T) {
	var kinds []ThreatKind
	for _, p := range HostProbes() {
		kinds = append(kinds, p.Kind())
	}
	assert.ElementsMatch(t, AllThreats, kinds)
}

// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"runtime"
	"testing"
)

func TestCurrent(t *testing.T) {
	t.Parallel()

	h := Current()
	if h.OS != runtime.GOOS || h.Arch != runtime.GOARCH {
		t.Errorf("Current() = %v, want %s/%s", h, runtime.GOOS, runtime.GOARCH)
	}
	if got, want := h.String(), runtime.GOOS+"/"+runtime.GOARCH; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestHostPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host       Host
		wantDarwin bool
		wantLinux  bool
	}{
		{Host{OS: Darwin, Arch: ARM64}, true, false},
		{Host{OS: Linux, Arch: AMD64}, false, true},
		{Host{OS: Windows, Arch: AMD64}, false, false},
	}

	for _, tt := range tests {
		if got := tt.host.IsDarwin(); got != tt.wantDarwin {
			t.Errorf("%v.IsDarwin() = %v, want %v", tt.host, got, tt.wantDarwin)
		}
		if got := tt.host.IsLinux(); got != tt.wantLinux {
			t.Errorf("%v.IsLinux() = %v, want %v", tt.host, got, tt.wantLinux)
		}
	}
}

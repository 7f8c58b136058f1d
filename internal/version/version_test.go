// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/learning/dailypush/internal/testutil"
)

func TestLoadInfo(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		bi          *debug.BuildInfo
		ok          bool
		wantVersion string
		wantCommit  string
		wantBuiltAt string
	}{
		"no build info": {
			ok:          false,
			wantVersion: "devel",
		},
		"devel": {
			bi:          &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			ok:          true,
			wantVersion: "devel",
		},
		"tagged with vcs": {
			bi: &debug.BuildInfo{
				Main: debug.Module{Version: "v1.2.3"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "abcdef"},
					{Key: "vcs.time", Value: "2025-10-01T00:00:00Z"},
				},
			},
			ok:          true,
			wantVersion: "v1.2.3",
			wantCommit:  "abcdef",
			wantBuiltAt: "2025-10-01T00:00:00Z",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			i := loadInfo(func() (*debug.BuildInfo, bool) { return tc.bi, tc.ok })
			testutil.AssertEqual(t, i.Version, tc.wantVersion)
			testutil.AssertEqual(t, i.Commit, tc.wantCommit)
			testutil.AssertEqual(t, i.BuiltAt, tc.wantBuiltAt)
		})
	}
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   Info
		want string
	}{
		"release": {
			in:   Info{Name: "dailypush", Version: "v1.0.0"},
			want: "dailypush/v1.0.0 (+https://github.com/learning/dailypush)",
		},
		"devel with commit": {
			in:   Info{Name: "wxhook", Version: "devel", Commit: "abcdef"},
			want: "wxhook/abcdef (+https://github.com/learning/dailypush)",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, userAgent(tc.in), tc.want)
		})
	}
}

func TestInfoString(t *testing.T) {
	t.Parallel()

	s := Info{Name: "wxhook", Version: "v1", Go: "go1.24", OS: "linux", Arch: "amd64", Commit: "c", BuiltAt: "t"}.String()
	if !strings.HasPrefix(s, "wxhook v1 (go1.24, linux/amd64)\n") {
		t.Fatalf("unexpected first line in %q", s)
	}
	if !strings.Contains(s, "commit c\n") {
		t.Fatalf("commit line missing in %q", s)
	}
}

package metrics

import (
	"runtime"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(buildInfo) }

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "quickcommand_build_info",
		Help: "Always 1; labels carry version, commit and Go runtime.",
	},
	[]string{"version", "commit", "goversion"},
)

// SetBuildInfo publishes the build labels. Empty or "dev" values fall back to
// the module version and VCS revision embedded by the Go toolchain.
func SetBuildInfo(version, commit string) {
	if bi, ok := debug.ReadBuildInfo(); ok {
		if version == "" || version == "dev" {
			if v := bi.Main.Version; v != "" && v != "(devel)" {
				version = v
			}
		}
		if commit == "" || commit == "none" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 12 {
					commit = s.Value[:12]
				}
			}
		}
	}
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

package commitment

import (
	"runtime"
	"runtime/debug"
	"strings"
)

// ModuleProvenance identifies one cryptographic dependency compiled into
// the binary, with the module checksum recorded by the build.
type ModuleProvenance struct {
	Path    string `json:"path"`
	Version string `json:"version"`
	Sum     string `json:"sum,omitempty"`
}

// ProvenanceReport ties the available backends to the exact crypto modules
// they were built from, so an audit can pin down what code produced a
// transcript.
type ProvenanceReport struct {
	Backends  []string           `json:"backends"`
	Modules   []ModuleProvenance `json:"modules"`
	GoVersion string             `json:"go_version"`
}

// cryptoModulePrefixes selects the dependencies worth reporting.
var cryptoModulePrefixes = []string{
	"github.com/drand/kyber",
	"golang.org/x/crypto",
	"github.com/fxamacker/cbor",
}

// Provenance reports the commitment backends and the crypto modules backing
// them. Module data comes from the build info and is empty for binaries
// built without module support.
func Provenance() ProvenanceReport {
	report := ProvenanceReport{
		Backends:  ListSchemes(),
		GoVersion: runtime.Version(),
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return report
	}
	for _, dep := range info.Deps {
		for _, prefix := range cryptoModulePrefixes {
			if strings.HasPrefix(dep.Path, prefix) {
				report.Modules = append(report.Modules, ModuleProvenance{
					Path:    dep.Path,
					Version: dep.Version,
					Sum:     dep.Sum,
				})
				break
			}
		}
	}
	return report
}

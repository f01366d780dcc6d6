package response

import (
	"net/http"

	"github.com/darkden-lab/ozone/internal/params"
	"github.com/darkden-lab/ozone/internal/plugin"
	"github.com/darkden-lab/ozone/internal/timing"
)

// Assembler injects the metadata blocks requested by reserved parameters.
type Assembler struct {
	timings  *timing.Store
	probe    HostProbe
	reserved *params.Registry
}

func NewAssembler(timings *timing.Store, probe HostProbe, reserved *params.Registry) *Assembler {
	if probe == nil {
		probe = NewHostProbe()
	}
	return &Assembler{timings: timings, probe: probe, reserved: reserved}
}

// Annotate merges the performance, system and request blocks whose flags
// resolved true. It is never called for enumerations.
func (a *Assembler) Annotate(env *Envelope, r *http.Request, rc *plugin.RequestContext) {
	if a.reserved.Flag(rc.Reserved, params.Performance) {
		env.Performance = PerformanceOf(a.timings, rc.ID)
	}
	if a.reserved.Flag(rc.Reserved, params.System) {
		env.System = a.probe.System()
	}
	if a.reserved.Flag(rc.Reserved, params.Request) {
		env.Request = DescribeRequest(r, rc.Reserved, rc.Domain)
	}
}

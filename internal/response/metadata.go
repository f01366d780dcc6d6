package response

import (
	"math"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/mssola/useragent"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/darkden-lab/ozone/internal/params"
	"github.com/darkden-lab/ozone/internal/timing"
)

// Performance reports the pre-api and api phases of a request.
type Performance struct {
	RequestStarted float64 `json:"requestStarted"`
	RequestEnded   float64 `json:"requestEnded"`
	RequestTimeMs  float64 `json:"requestTimeMs"`
}

// PerformanceOf reads the recorded phases of request id.
func PerformanceOf(store *timing.Store, id string) *Performance {
	snap := store.Snapshot(id)
	pre, api := snap[timing.PreAPI], snap[timing.API]
	return &Performance{
		RequestStarted: pre.Start,
		RequestEnded:   api.End,
		RequestTimeMs:  pre.Total + api.Total,
	}
}

// System describes the host at the time of the request.
type System struct {
	Proc    int     `json:"proc"`
	Server  string  `json:"server"`
	Load    float64 `json:"load"`
	FreeMem float64 `json:"freeMem"`
}

// HostProbe samples host statistics.
type HostProbe interface {
	System() *System
}

type hostProbe struct{}

// NewHostProbe returns a probe backed by gopsutil.
func NewHostProbe() HostProbe { return hostProbe{} }

func (hostProbe) System() *System {
	s := &System{Proc: runtime.NumCPU()}
	s.Server, _ = os.Hostname()
	if avg, err := load.Avg(); err == nil {
		s.Load = avg.Load1
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.FreeMem = math.Round(float64(vm.Free)/1e6*100) / 100
	}
	return s
}

// RequestInfo describes the client side of a request.
type RequestInfo struct {
	ViaAjax          bool               `json:"viaAjax"`
	OS               string             `json:"os"`
	Platform         string             `json:"platform"`
	Browser          string             `json:"browser"`
	BrowserVersion   string             `json:"browserVersion"`
	IPAddress        string             `json:"ipAddress"`
	SSL              bool               `json:"ssl"`
	APIParameters    []params.Parameter `json:"apiParameters"`
	GlobalParameters []params.Parameter `json:"globalParameters"`
}

// DescribeRequest parses the user agent and connection details of r.
func DescribeRequest(r *http.Request, reserved, domain []params.Parameter) *RequestInfo {
	ua := useragent.New(r.UserAgent())
	browser, version := ua.Browser()

	if reserved == nil {
		reserved = []params.Parameter{}
	}
	if domain == nil {
		domain = []params.Parameter{}
	}
	return &RequestInfo{
		ViaAjax:          strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest"),
		OS:               ua.OS(),
		Platform:         ua.Platform(),
		Browser:          browser,
		BrowserVersion:   version,
		IPAddress:        ClientIP(r),
		SSL:              r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https"),
		APIParameters:    domain,
		GlobalParameters: reserved,
	}
}

// ClientIP returns the first X-Forwarded-For address, else the remote host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

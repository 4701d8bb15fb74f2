package resolve

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landed-cost/pkg/geoip"
	"github.com/sells-group/landed-cost/pkg/hts"
)

// fakeAI returns canned replies keyed by a substring of the prompt. An
// empty table means every call errors.
type fakeAI struct {
	replies map[string]string
	err     error
	calls   atomic.Int64
	prompts []string
}

func (f *fakeAI) Complete(_ context.Context, system, prompt string) (string, error) {
	f.calls.Add(1)
	f.prompts = append(f.prompts, system+"\n"+prompt)
	if f.err != nil {
		return "", f.err
	}
	for key, reply := range f.replies {
		if strings.Contains(prompt, key) || strings.Contains(system, key) {
			return reply, nil
		}
	}
	return "", eris.New("fakeAI: no canned reply")
}

type fakeVision struct {
	labels []string
	err    error
	calls  atomic.Int64
}

func (f *fakeVision) DetectLabels(_ context.Context, _ []byte, _ string, max int) ([]string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if max > 0 && len(f.labels) > max {
		return f.labels[:max], nil
	}
	return f.labels, nil
}

func (f *fakeVision) DetectLabelsURL(_ context.Context, _ string, max int) ([]string, error) {
	return f.DetectLabels(context.Background(), nil, "", max)
}

type fakeGeo struct {
	loc   *geoip.Location
	err   error
	calls atomic.Int64
}

func (f *fakeGeo) Lookup(_ context.Context, ip string) (*geoip.Location, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	loc := *f.loc
	if loc.IP == "" {
		loc.IP = ip
	}
	return &loc, nil
}

type fakeHTS struct {
	duty  string
	err   error
	calls atomic.Int64
}

func (f *fakeHTS) Search(_ context.Context, _ string) (*hts.SearchResponse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.duty == "" {
		return &hts.SearchResponse{}, nil
	}
	return &hts.SearchResponse{
		Results: []hts.Result{{Duties: []hts.Duty{{Duty: f.duty}}}},
	}, nil
}

type fakeVAT struct {
	rate       float64
	ok         bool
	err        error
	configured bool
	calls      atomic.Int64
}

func (f *fakeVAT) Configured() bool { return f.configured }

func (f *fakeVAT) StandardRate(_ context.Context, _ string) (float64, bool, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, false, f.err
	}
	return f.rate, f.ok, nil
}

// fakeImageSource backs both the scrape and licensed-search clients.
type fakeImageSource struct {
	url   string
	err   error
	calls atomic.Int64
}

func (f *fakeImageSource) FirstImage(_ context.Context, _ string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

package analysis

import (
	"context"
	"errors"
	"sync"

	"github.com/satriahrh/fixit/server/domain/entities"
)

// fakeGateway replies by request purpose; the last queued reply repeats
type fakeGateway struct {
	mu       sync.Mutex
	replies  map[string][]string
	errs     map[string]error
	grounded *entities.GroundingResult
	calls    []entities.ModelRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{replies: map[string][]string{}, errs: map[string]error{}}
}

func (f *fakeGateway) reply(purpose string, raw ...string) {
	f.replies[purpose] = append(f.replies[purpose], raw...)
}

func (f *fakeGateway) Invoke(_ context.Context, req entities.ModelRequest) (*entities.ModelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err := f.errs[req.Purpose]; err != nil {
		return nil, err
	}
	queue := f.replies[req.Purpose]
	if len(queue) == 0 {
		return nil, errors.New("no scripted reply for " + req.Purpose)
	}
	raw := queue[0]
	if len(queue) > 1 {
		f.replies[req.Purpose] = queue[1:]
	}
	return &entities.ModelResult{Raw: []byte(raw)}, nil
}

func (f *fakeGateway) InvokeGrounded(_ context.Context, req entities.ModelRequest) (*entities.GroundingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err := f.errs[req.Purpose]; err != nil {
		return nil, err
	}
	if f.grounded == nil {
		return nil, errors.New("not scripted")
	}
	return f.grounded, nil
}

func (f *fakeGateway) QuotaStatus() entities.QuotaStatus { return entities.QuotaStatus{} }
func (f *fakeGateway) ResetBreaker()                     {}
func (f *fakeGateway) BreakerOpen() bool                 { return false }

func (f *fakeGateway) purposes() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Purpose)
	}
	return out
}

var testImage = &entities.ImagePart{Data: []byte{0xff}, MIMEType: "image/jpeg", Width: 1000, Height: 800}
